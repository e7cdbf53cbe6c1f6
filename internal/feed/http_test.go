package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `[
 {"sno":"500101001","sna":"YouBike2.0_捷運科技大樓站","sarea":"大安區","mday":"2024-05-20 14:03:18","ar":"復興南路二段235號前","sareaen":"Daan Dist.","snaen":"YouBike2.0_MRT Technology Bldg. Sta.","aren":"No.235, Sec. 2, Fuxing S. Rd.","act":"1","srcUpdateTime":"2024-05-20 14:05:23","updateTime":"2024-05-20 14:05:52","infoTime":"2024-05-20 14:03:18","infoDate":"2024-05-20","total":28,"available_rent_bikes":3,"latitude":25.02605,"longitude":121.5436,"available_return_bikes":25},
 {"sno":"500101002","sna":"YouBike2.0_復興南路二段273號前","sarea":"大安區","mday":"2024-05-20 14:03:18","ar":"復興南路二段273號西側","sareaen":"Daan Dist.","snaen":"YouBike2.0_No.273, Sec. 2, Fuxing S. Rd.","aren":"No.273, Sec. 2, Fuxing S. Rd. (West)","act":"1","srcUpdateTime":"2024-05-20 14:05:23","updateTime":"2024-05-20 14:05:52","infoTime":"2024-05-20 14:03:18","infoDate":"2024-05-20","total":21,"available_rent_bikes":0,"latitude":25.02565,"longitude":121.54357,"available_return_bikes":21}
]`

type recordedMetrics struct {
	calls int
	err   error
}

func (m *recordedMetrics) FetchObserve(d time.Duration, err error) {
	m.calls++
	m.err = err
}

func TestHTTPFetcherDecodesFeed(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	m := &recordedMetrics{}
	f := NewHTTPFetcher(srv.URL, time.Second, m)
	stations, err := f.FetchStations(context.Background())
	if err != nil {
		t.Fatalf("FetchStations: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected one request, got %d", hits)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}

	s := stations[0]
	if s.Sno != "500101001" || s.Sarea != "大安區" || s.Total != 28 {
		t.Errorf("unexpected station %+v", s)
	}
	if s.AvailableRent != 3 || s.AvailableRet != 25 {
		t.Errorf("counts = %d/%d", s.AvailableRent, s.AvailableRet)
	}
	if s.Latitude != 25.02605 || s.Longitude != 121.5436 {
		t.Errorf("position = %f,%f", s.Latitude, s.Longitude)
	}
	if !s.Active() || s.InfoDate != "2024-05-20" || s.SrcUpdateTime != "2024-05-20 14:05:23" {
		t.Errorf("metadata not decoded: %+v", s)
	}
	if m.calls != 1 || m.err != nil {
		t.Errorf("metrics = %+v", m)
	}
}

func TestHTTPFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"sno":`))
		}},
		{"object instead of array", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"retVal":[]}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			m := &recordedMetrics{}
			_, err := NewHTTPFetcher(srv.URL, time.Second, m).FetchStations(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if m.err == nil {
				t.Error("metrics should observe the error")
			}
		})
	}
}

func TestHTTPFetcherDefaults(t *testing.T) {
	f := NewHTTPFetcher("", 0, nil)
	if f.Name() != DefaultURL {
		t.Errorf("Name() = %s", f.Name())
	}
	if f.client.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", f.client.Timeout)
	}
}
