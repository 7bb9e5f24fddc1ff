package querystring

import "testing"

func TestResolveRead(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		key         string
		req         Value
		opts        ResolveOptions
		wantValue   string
		wantPresent bool
	}{
		{
			name: "absent key",
			url:  "/blog",
			key:  "tag",
			req:  Absent,
		},
		{
			name:        "present key",
			url:         "/blog?tag=js",
			key:         "tag",
			req:         Absent,
			wantValue:   "js",
			wantPresent: true,
		},
		{
			name:        "present with empty value",
			url:         "/blog?flag=",
			key:         "flag",
			req:         Absent,
			wantValue:   "",
			wantPresent: true,
		},
		{
			name:        "bare flag",
			url:         "/blog?flag",
			key:         "flag",
			req:         Absent,
			wantValue:   "",
			wantPresent: true,
		},
		{
			name:        "null with keep-null reads",
			url:         "/blog?tag=js",
			key:         "tag",
			req:         Null,
			opts:        ResolveOptions{KeepNull: true},
			wantValue:   "js",
			wantPresent: true,
		},
		{
			name: "null with keep-null on absent key",
			url:  "/blog",
			key:  "tag",
			req:  Null,
			opts: ResolveOptions{KeepNull: true},
		},
		{
			name:        "duplicate keys read last value",
			url:         "/blog?tag=js&tag=go",
			key:         "tag",
			req:         Absent,
			wantValue:   "go",
			wantPresent: true,
		},
		{
			name:        "percent escapes decoded",
			url:         "/search?q=hello%20world",
			key:         "q",
			req:         Absent,
			wantValue:   "hello world",
			wantPresent: true,
		},
		{
			name:        "plus decoded as space",
			url:         "/search?q=hello+world",
			key:         "q",
			req:         Absent,
			wantValue:   "hello world",
			wantPresent: true,
		},
		{
			name:        "malformed escape kept verbatim",
			url:         "/search?q=100%ZZ",
			key:         "q",
			req:         Absent,
			wantValue:   "100%ZZ",
			wantPresent: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.url, tc.key, tc.req, tc.opts)
			if got.URL != tc.url {
				t.Errorf("Resolve(%q, %q, read).URL = %q, want unchanged %q", tc.url, tc.key, got.URL, tc.url)
			}
			if got.Value.Value != tc.wantValue || got.Value.Present != tc.wantPresent {
				t.Errorf("Resolve(%q, %q, read).Value = %+v, want {Value:%q Present:%v}",
					tc.url, tc.key, got.Value, tc.wantValue, tc.wantPresent)
			}
		})
	}
}

func TestResolveWrite(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		value   string
		wantURL string
	}{
		{
			name:    "new key on bare path",
			url:     "/blog",
			key:     "tag",
			value:   "science",
			wantURL: "/blog?tag=science",
		},
		{
			name:    "overwrite preserves order and neighbors",
			url:     "/blog?tag=js&page=2",
			key:     "page",
			value:   "3",
			wantURL: "/blog?tag=js&page=3",
		},
		{
			name:    "overwrite first key",
			url:     "/blog?tag=ml&sort=new",
			key:     "tag",
			value:   "css",
			wantURL: "/blog?tag=css&sort=new",
		},
		{
			name:    "empty string is a real value",
			url:     "/blog?tag=js",
			key:     "tag",
			value:   "",
			wantURL: "/blog?tag=",
		},
		{
			name:    "trailing slash stripped",
			url:     "/blog/",
			key:     "tag",
			value:   "go",
			wantURL: "/blog?tag=go",
		},
		{
			name:    "root slash kept",
			url:     "/",
			key:     "tag",
			value:   "go",
			wantURL: "/?tag=go",
		},
		{
			name:    "absolute url root kept",
			url:     "https://example.com/",
			key:     "tag",
			value:   "go",
			wantURL: "https://example.com/?tag=go",
		},
		{
			name:    "absolute url trailing slash stripped",
			url:     "https://example.com/blog/?page=2",
			key:     "page",
			value:   "3",
			wantURL: "https://example.com/blog?page=3",
		},
		{
			name:    "value escaped",
			url:     "/search",
			key:     "q",
			value:   "a&b=c",
			wantURL: "/search?q=a%26b%3Dc",
		},
		{
			name:    "space encoded as plus",
			url:     "/search",
			key:     "q",
			value:   "hello world",
			wantURL: "/search?q=hello+world",
		},
		{
			name:    "duplicate keys collapse on write",
			url:     "/blog?tag=js&page=2&tag=go",
			key:     "page",
			value:   "3",
			wantURL: "/blog?tag=go&page=3",
		},
		{
			name:    "fragment preserved",
			url:     "/blog?tag=js#comments",
			key:     "tag",
			value:   "go",
			wantURL: "/blog?tag=go#comments",
		},
		{
			name:    "empty key accepted",
			url:     "/blog",
			key:     "",
			value:   "x",
			wantURL: "/blog?=x",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.url, tc.key, String(tc.value), ResolveOptions{})
			if got.URL != tc.wantURL {
				t.Errorf("Resolve(%q, %q, %q).URL = %q, want %q", tc.url, tc.key, tc.value, got.URL, tc.wantURL)
			}
			if !got.Value.Present || got.Value.Value != tc.value {
				t.Errorf("Resolve(%q, %q, %q).Value = %+v, want {Value:%q Present:true}",
					tc.url, tc.key, tc.value, got.Value, tc.value)
			}
		})
	}
}

func TestResolveDelete(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		wantURL string
	}{
		{
			name:    "delete only key omits question mark",
			url:     "/blog?tag=science",
			key:     "tag",
			wantURL: "/blog",
		},
		{
			name:    "delete preserves neighbors",
			url:     "/blog?tag=js&page=2",
			key:     "tag",
			wantURL: "/blog?page=2",
		},
		{
			name:    "delete absent key",
			url:     "/blog?page=2",
			key:     "tag",
			wantURL: "/blog?page=2",
		},
		{
			name:    "delete last key with trailing slash",
			url:     "/blog/?tag=js",
			key:     "tag",
			wantURL: "/blog",
		},
		{
			name:    "delete on root",
			url:     "/?tag=js",
			key:     "tag",
			wantURL: "/",
		},
		{
			name:    "delete keeps fragment",
			url:     "/blog?tag=js#top",
			key:     "tag",
			wantURL: "/blog#top",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.url, tc.key, Null, ResolveOptions{})
			if got.URL != tc.wantURL {
				t.Errorf("Resolve(%q, %q, Null).URL = %q, want %q", tc.url, tc.key, got.URL, tc.wantURL)
			}
			if got.Value.Present {
				t.Errorf("Resolve(%q, %q, Null).Value = %+v, want not present", tc.url, tc.key, got.Value)
			}
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	urls := []string{"/blog", "/blog?tag=js&page=2", "/blog/?sort=new", "https://example.com/a?b=c#frag"}
	values := []string{"science", "", "hello world", "a&b=c?d", "100%", "täg"}

	for _, u := range urls {
		for _, v := range values {
			written := Resolve(u, "k", String(v), ResolveOptions{})
			read := Resolve(written.URL, "k", Absent, ResolveOptions{})
			if !read.Value.Present || read.Value.Value != v {
				t.Errorf("round trip via %q: wrote %q to %q, read back %+v", u, v, written.URL, read.Value)
			}
			if read.URL != written.URL {
				t.Errorf("read of %q changed URL to %q", written.URL, read.URL)
			}
		}
	}
}

func TestResolveDeletionIdempotent(t *testing.T) {
	urls := []string{"/blog?tag=js", "/blog?tag=js&page=2", "/blog/?tag=js", "/blog"}

	for _, u := range urls {
		first := Resolve(u, "tag", Null, ResolveOptions{})
		second := Resolve(first.URL, "tag", Null, ResolveOptions{})
		if second.URL != first.URL {
			t.Errorf("deleting %q twice: first %q, second %q", u, first.URL, second.URL)
		}
	}
}

func TestResolveKeepNullLeavesURL(t *testing.T) {
	u := "/blog/?tag=js&page=2"
	got := Resolve(u, "tag", Null, ResolveOptions{KeepNull: true})
	if got.URL != u {
		t.Errorf("Resolve with KeepNull changed URL: got %q, want %q", got.URL, u)
	}
	if !got.Value.Present || got.Value.Value != "js" {
		t.Errorf("Resolve with KeepNull resolved %+v, want {Value:\"js\" Present:true}", got.Value)
	}
}
