package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/brobot/rolegroup"
	"github.com/zephyrtronium/brobot/rolegroup/rolegrouptest"
)

func TestAPIColors(t *testing.T) {
	dir := rolegrouptest.New("Team Pink", "Team Yellow")
	dir.Join(rolegroup.Member{Guild: "kessoku", User: "bocchi"}, "Bocchi", "Team Pink")
	dir.Join(rolegroup.Member{Guild: "kessoku", User: "nijika"}, "Nijika", "Team Yellow")
	dir.Join(rolegroup.Member{Guild: "kessoku", User: "ryo"}, "Ryo", "Team Yellow")
	robo := testRobot(t, dir)
	mux := http.NewServeMux()
	robo.routes(mux, robo.metrics.Collectors())

	intp := func(n int) *int { return &n }
	cases := []struct {
		name   string
		path   string
		status int
		want   []apiColor
	}{
		{
			name:   "list",
			path:   "/api/colors",
			status: http.StatusOK,
			want: []apiColor{
				{Name: "pink", Display: "Pink", Role: "Team Pink"},
				{Name: "yellow", Display: "Yellow", Role: "Team Yellow"},
			},
		},
		{
			name:   "guild",
			path:   "/api/colors/kessoku",
			status: http.StatusOK,
			want: []apiColor{
				{Name: "pink", Display: "Pink", Role: "Team Pink", Members: intp(1)},
				{Name: "yellow", Display: "Yellow", Role: "Team Yellow", Members: intp(2)},
			},
		},
		{
			name:   "other-guild",
			path:   "/api/colors/sick",
			status: http.StatusNotFound,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", c.path, nil))
			if w.Code != c.status {
				t.Errorf("wrong status: want %d, got %d", c.status, w.Code)
			}
			if c.want == nil {
				return
			}
			var got apiColors
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("couldn't decode response: %v", err)
			}
			if diff := cmp.Diff(c.want, got.Data); diff != "" {
				t.Errorf("wrong colors (+got/-want):\n%s", diff)
			}
		})
	}
}

func TestAPIMembersFail(t *testing.T) {
	dir := rolegrouptest.New("Team Pink", "Team Yellow")
	dir.Fail("members", "", errors.New("gateway timeout"))
	robo := testRobot(t, dir)
	mux := http.NewServeMux()
	robo.routes(mux, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/colors/kessoku", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("wrong status: want %d, got %d", http.StatusBadGateway, w.Code)
	}
}

func TestAPIMetrics(t *testing.T) {
	robo := testRobot(t, rolegrouptest.New("Team Pink"))
	mux := http.NewServeMux()
	m := newMetrics()
	robo.routes(mux, m.Collectors())
	m.RoleChanges.Observe(1, "add", "ok")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("wrong status: %d", w.Code)
	}
	b, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(b), "brobot_roles_changes") {
		t.Errorf("metrics missing role changes:\n%s", b)
	}
}
