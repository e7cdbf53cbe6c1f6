package mapview

import (
	"strings"
	"testing"

	"bikemap/internal/geo"
	"bikemap/internal/station"
)

func TestDestinationName(t *testing.T) {
	tests := []struct {
		in, expect string
	}{
		{"YouBike2.0_捷運科技大樓站", "YouBike微笑單車+2.0:捷運科技大樓站"},
		{"YouBike2.0_A_B", "YouBike微笑單車+2.0:A_B"},
		{"一般站名", "一般站名"},
		{"站_名", "站名"},
	}
	for _, tc := range tests {
		if got := DestinationName(tc.in); got != tc.expect {
			t.Errorf("DestinationName(%q) = %q, expected %q", tc.in, got, tc.expect)
		}
	}
}

func TestNavigationURL(t *testing.T) {
	s := station.Station{Sna: "YouBike2.0_捷運科技大樓站", Latitude: 25.02605, Longitude: 121.5436}
	got := NavigationURL(geo.Fallback, s)

	prefix := "https://www.google.com.tw/maps/dir/25.03746,121.564558/"
	if !strings.HasPrefix(got, prefix) {
		t.Errorf("unexpected prefix: %s", got)
	}
	if !strings.HasSuffix(got, "/@25.02605,121.5436,19z/?entry=ttu") {
		t.Errorf("unexpected suffix: %s", got)
	}
	if !strings.Contains(got, "YouBike%E5%BE%AE%E7%AC%91%E5%96%AE%E8%BB%8A+2.0:") {
		t.Errorf("destination not escaped as expected: %s", got)
	}
}

func TestStationPopupContent(t *testing.T) {
	s := station.Station{Sno: "1", Sna: "YouBike2.0_<測試>", Ar: "信義路", Latitude: 25, Longitude: 121, AvailableRent: 3, AvailableRet: 5}
	p := StationPopup(s, geo.Fallback)

	for _, want := range []string{"站名：YouBike2.0_&lt;測試&gt;", "地址：信義路", "可租借車輛：3", "可歸還車位：5", "在Google Map上導航"} {
		if !strings.Contains(p.HTML, want) {
			t.Errorf("popup html missing %q: %s", want, p.HTML)
		}
	}
	if p.Station.NavigationURL == "" || !strings.Contains(p.HTML, "https://www.google.com.tw/maps/dir/25.03746,121.564558/") {
		t.Errorf("popup should link to navigation: %s", p.HTML)
	}
}

func TestIconFor(t *testing.T) {
	icon := IconFor("green")
	if !strings.HasSuffix(icon.IconURL, "marker-icon-2x-green.png") {
		t.Errorf("icon url = %s", icon.IconURL)
	}
	if icon.IconSize != [2]int{25, 41} || icon.PopupAnchor != [2]int{1, -34} {
		t.Errorf("unexpected icon geometry %+v", icon)
	}
}
