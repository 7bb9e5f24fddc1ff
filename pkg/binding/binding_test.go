package binding

import (
	"strconv"
	"testing"

	"github.com/urlbind-dev/urlbind/pkg/history"
	"github.com/urlbind-dev/urlbind/pkg/querystring"
)

func TestBindReadsWithoutCommit(t *testing.T) {
	tests := []struct {
		name        string
		startURL    string
		initial     querystring.Value
		wantValue   string
		wantPresent bool
	}{
		{
			name:     "absent key",
			startURL: "/blog",
			initial:  querystring.Absent,
		},
		{
			name:        "url provides value",
			startURL:    "/blog?tag=ml&sort=new",
			initial:     querystring.Absent,
			wantValue:   "ml",
			wantPresent: true,
		},
		{
			name:        "initial overrides url in state",
			startURL:    "/blog?tag=ml",
			initial:     querystring.String("css"),
			wantValue:   "css",
			wantPresent: true,
		},
		{
			name:        "initial fills absent key",
			startURL:    "/blog",
			initial:     querystring.String("go"),
			wantValue:   "go",
			wantPresent: true,
		},
		{
			name:     "null initial starts empty",
			startURL: "/blog?tag=ml",
			initial:  querystring.Null,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := history.NewMemory(tc.startURL)
			b := Bind(h, "tag", tc.initial)

			got := b.Get()
			if got.Value != tc.wantValue || got.Present != tc.wantPresent {
				t.Errorf("Get() = %+v, want {Value:%q Present:%v}", got, tc.wantValue, tc.wantPresent)
			}
			if loc := h.Location(); loc != tc.startURL {
				t.Errorf("Bind committed: Location() = %q, want %q", loc, tc.startURL)
			}
			if n := h.Length(); n != 1 {
				t.Errorf("Bind committed: Length() = %d, want 1", n)
			}
		})
	}
}

func TestSetAndClearScenario(t *testing.T) {
	h := history.NewMemory("/blog")
	tag := Bind(h, "tag", querystring.Absent)

	if got := tag.Get(); got.Present {
		t.Fatalf("initial Get() = %+v, want not present", got)
	}

	got := tag.SetString("science")
	if got.Value != "science" || !got.Present {
		t.Errorf("SetString = %+v, want science", got)
	}
	if loc := h.Location(); loc != "/blog?tag=science" {
		t.Errorf("Location() = %q, want %q", loc, "/blog?tag=science")
	}

	got = tag.Clear()
	if got.Present {
		t.Errorf("Clear() = %+v, want not present", got)
	}
	if loc := h.Location(); loc != "/blog" {
		t.Errorf("Location() after Clear = %q, want %q", loc, "/blog")
	}
	if n := h.Length(); n != 1 {
		t.Errorf("Length() = %d, want 1 (replace mode keeps one entry)", n)
	}
}

func TestSetPushScenario(t *testing.T) {
	h := history.NewMemory("/blog?tag=ml&sort=new")
	tag := Bind(h, "tag", querystring.Absent)

	if got := tag.Get(); got.Value != "ml" {
		t.Fatalf("initial Get() = %+v, want ml", got)
	}

	tag.SetString("css", Push)
	if loc := h.Location(); loc != "/blog?tag=css&sort=new" {
		t.Errorf("Location() = %q, want %q", loc, "/blog?tag=css&sort=new")
	}
	if n := h.Length(); n != 2 {
		t.Errorf("Length() = %d, want 2 (push adds one entry)", n)
	}

	h.Back()
	if loc := h.Location(); loc != "/blog?tag=ml&sort=new" {
		t.Errorf("Location() after Back = %q, want the pre-change URL", loc)
	}
}

func TestSetModeMerge(t *testing.T) {
	h := history.NewMemory("/blog")
	tag := Bind(h, "tag", querystring.Absent, Push)

	tag.SetString("a")
	if n := h.Length(); n != 2 {
		t.Fatalf("bound push: Length() = %d, want 2", n)
	}

	// Per-call override, this call only.
	tag.SetString("b", Replace)
	if n := h.Length(); n != 2 {
		t.Errorf("replace override: Length() = %d, want 2", n)
	}
	if loc := h.Location(); loc != "/blog?tag=b" {
		t.Errorf("Location() = %q, want %q", loc, "/blog?tag=b")
	}

	// The override did not stick.
	tag.SetString("c")
	if n := h.Length(); n != 3 {
		t.Errorf("after override expired: Length() = %d, want 3", n)
	}
}

func TestSetKeepNullMerge(t *testing.T) {
	h := history.NewMemory("/blog?tag=js")
	tag := Bind(h, "tag", querystring.Absent, KeepNull)

	got := tag.Clear()
	if !got.Present || got.Value != "js" {
		t.Errorf("Clear with bound KeepNull = %+v, want read of js", got)
	}
	if loc := h.Location(); loc != "/blog?tag=js" {
		t.Errorf("Location() = %q, want unchanged", loc)
	}

	got = tag.Clear(DeleteOnNull)
	if got.Present {
		t.Errorf("Clear(DeleteOnNull) = %+v, want not present", got)
	}
	if loc := h.Location(); loc != "/blog" {
		t.Errorf("Location() = %q, want %q", loc, "/blog")
	}
}

func TestSetPreservesNeighbors(t *testing.T) {
	h := history.NewMemory("/blog?tag=js&page=2")
	page := Bind(h, "page", querystring.Absent)

	page.SetString("3")
	if loc := h.Location(); loc != "/blog?tag=js&page=3" {
		t.Errorf("Location() = %q, want %q", loc, "/blog?tag=js&page=3")
	}
}

func TestUpdate(t *testing.T) {
	h := history.NewMemory("/blog?page=2")
	page := Bind(h, "page", querystring.Absent)

	got := page.Update(func(cur querystring.Resolved) querystring.Value {
		n, _ := strconv.Atoi(cur.Or("1"))
		return querystring.String(strconv.Itoa(n + 1))
	})
	if got.Value != "3" {
		t.Errorf("Update = %+v, want 3", got)
	}
	if loc := h.Location(); loc != "/blog?page=3" {
		t.Errorf("Location() = %q, want %q", loc, "/blog?page=3")
	}
}

func TestSubscribe(t *testing.T) {
	h := history.NewMemory("/blog")
	tag := Bind(h, "tag", querystring.Absent)

	var seen []querystring.Resolved
	cancel := tag.Subscribe(func(v querystring.Resolved) {
		seen = append(seen, v)
	})

	tag.SetString("a")
	tag.SetString("a") // equal value: commit happens, no notification
	tag.SetString("b")

	if len(seen) != 2 || seen[0].Value != "a" || seen[1].Value != "b" {
		t.Errorf("subscriber saw %v, want [a b]", seen)
	}

	cancel()
	tag.SetString("c")
	if len(seen) != 2 {
		t.Errorf("subscriber notified after cancel: %v", seen)
	}
}

func TestEqualValuePushStillCommits(t *testing.T) {
	h := history.NewMemory("/blog?tag=a")
	tag := Bind(h, "tag", querystring.Absent, Push)

	tag.SetString("a")
	tag.SetString("a")
	if n := h.Length(); n != 3 {
		t.Errorf("Length() = %d, want 3 (every push commits, equal value or not)", n)
	}
}

func TestRefreshFollowsExternalNavigation(t *testing.T) {
	h := history.NewMemory("/blog")
	tag := Bind(h, "tag", querystring.Absent)

	tag.SetString("a", Push)
	tag.SetString("b", Push)

	h.Back()
	if got := tag.Get(); got.Value != "b" {
		t.Fatalf("Get() after Back = %+v, want stale b before Refresh", got)
	}

	lengthBefore := h.Length()
	got := tag.Refresh()
	if got.Value != "a" || !got.Present {
		t.Errorf("Refresh() = %+v, want a", got)
	}
	if got := tag.Get(); got.Value != "a" {
		t.Errorf("Get() after Refresh = %+v, want a", got)
	}
	if h.Length() != lengthBefore {
		t.Errorf("Refresh committed: Length() = %d, want %d", h.Length(), lengthBefore)
	}

	h.Back()
	if got := tag.Refresh(); got.Present {
		t.Errorf("Refresh() at %q = %+v, want not present", h.Location(), got)
	}
}

func TestSameKeyLastWriteWins(t *testing.T) {
	h := history.NewMemory("/blog")
	first := Bind(h, "tag", querystring.Absent)
	second := Bind(h, "tag", querystring.Absent)

	first.SetString("a")
	second.SetString("b")

	if loc := h.Location(); loc != "/blog?tag=b" {
		t.Errorf("Location() = %q, want last write %q", loc, "/blog?tag=b")
	}
	// The earlier binding is stale until it refreshes; there is no
	// cross-binding coordination.
	if got := first.Get(); got.Value != "a" {
		t.Errorf("first.Get() = %+v, want stale a", got)
	}
	if got := first.Refresh(); got.Value != "b" {
		t.Errorf("first.Refresh() = %+v, want b", got)
	}
}

func TestWithMode(t *testing.T) {
	h := history.NewMemory("/blog")
	tag := Bind(h, "tag", querystring.Absent, WithMode(ModePush))

	tag.SetString("a")
	if n := h.Length(); n != 2 {
		t.Errorf("Length() = %d, want 2", n)
	}
	tag.SetString("b", WithMode(ModeReplace))
	if n := h.Length(); n != 2 {
		t.Errorf("Length() = %d, want 2 after replace override", n)
	}
}

func TestSetAbsentReadsAndCommits(t *testing.T) {
	h := history.NewMemory("/blog?tag=js")
	tag := Bind(h, "tag", querystring.Absent)

	got := tag.Set(querystring.Absent)
	if got.Value != "js" || !got.Present {
		t.Errorf("Set(Absent) = %+v, want read of js", got)
	}
	if loc := h.Location(); loc != "/blog?tag=js" {
		t.Errorf("Location() = %q, want unchanged", loc)
	}
}

func TestModeString(t *testing.T) {
	if got := ModeReplace.String(); got != "replace" {
		t.Errorf("ModeReplace.String() = %q, want %q", got, "replace")
	}
	if got := ModePush.String(); got != "push" {
		t.Errorf("ModePush.String() = %q, want %q", got, "push")
	}
}
