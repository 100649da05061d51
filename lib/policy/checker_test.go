package policy

import (
	"net/http"
	"testing"

	"github.com/lovebughq/ladybug/lib/policy/config"
)

func req(t *testing.T, mod func(r *http.Request)) *http.Request {
	t.Helper()

	r, err := http.NewRequest(http.MethodGet, "http://lovebug.app/matches", nil)
	if err != nil {
		t.Fatal(err)
	}

	if mod != nil {
		mod(r)
	}

	return r
}

func TestRemoteAddrChecker(t *testing.T) {
	c, err := NewRemoteAddrChecker([]string{"192.168.0.0/16", "2001:db8::/32"})
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		ip   string
		want bool
		err  bool
	}{
		{name: "in range v4", ip: "192.168.4.20", want: true},
		{name: "out of range v4", ip: "203.0.113.69", want: false},
		{name: "in range v6", ip: "2001:db8::1", want: true},
		{name: "no header", ip: "", err: true},
		{name: "garbage", ip: "taco salad", err: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := req(t, func(r *http.Request) {
				if tt.ip != "" {
					r.Header.Set("X-Real-Ip", tt.ip)
				}
			})

			ok, err := c.Check(r)
			if tt.err {
				if err == nil {
					t.Error("wanted an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Errorf("Check = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestUserAgentChecker(t *testing.T) {
	c, err := NewUserAgentChecker("curl|Scrapy")
	if err != nil {
		t.Fatal(err)
	}

	r := req(t, func(r *http.Request) { r.Header.Set("User-Agent", "curl/8.5.0") })
	if ok, _ := c.Check(r); !ok {
		t.Error("curl should match")
	}

	r = req(t, func(r *http.Request) { r.Header.Set("User-Agent", "Mozilla/5.0") })
	if ok, _ := c.Check(r); ok {
		t.Error("Mozilla should not match")
	}
}

func TestPathChecker(t *testing.T) {
	c, err := NewPathChecker("^/(healthz|metrics)$")
	if err != nil {
		t.Fatal(err)
	}

	r := req(t, nil)
	r.URL.Path = "/healthz"
	if ok, _ := c.Check(r); !ok {
		t.Error("/healthz should match")
	}

	r.URL.Path = "/matches"
	if ok, _ := c.Check(r); ok {
		t.Error("/matches should not match")
	}
}

func TestHeadersChecker(t *testing.T) {
	c, err := NewHeadersChecker(map[string]string{
		"Cf-Worker": ".*",
		"X-Client":  "^bot-",
	})
	if err != nil {
		t.Fatal(err)
	}

	r := req(t, func(r *http.Request) { r.Header.Set("Cf-Worker", "anything") })
	if ok, _ := c.Check(r); !ok {
		t.Error("present Cf-Worker header should match")
	}

	r = req(t, func(r *http.Request) { r.Header.Set("X-Client", "bot-9000") })
	if ok, _ := c.Check(r); !ok {
		t.Error("matching X-Client header should match")
	}

	r = req(t, nil)
	if ok, _ := c.Check(r); ok {
		t.Error("bare request should not match")
	}
}

func TestCELChecker(t *testing.T) {
	for _, tt := range []struct {
		name string
		expr string
		mod  func(r *http.Request)
		want bool
	}{
		{
			name: "user agent contains",
			expr: `userAgent.contains("curl")`,
			mod:  func(r *http.Request) { r.Header.Set("User-Agent", "curl/8.5.0") },
			want: true,
		},
		{
			name: "path",
			expr: `path.startsWith("/matches")`,
			want: true,
		},
		{
			name: "header lookup",
			expr: `"X-Client" in headers && headers["X-Client"] == "bot-9000"`,
			mod:  func(r *http.Request) { r.Header.Set("X-Client", "bot-9000") },
			want: true,
		},
		{
			name: "header missing",
			expr: `"X-Client" in headers`,
			want: false,
		},
		{
			name: "query lookup",
			expr: `"utm_source" in query`,
			mod:  func(r *http.Request) { r.URL.RawQuery = "utm_source=newsletter" },
			want: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCELChecker(&config.ExpressionOrList{Expression: tt.expr})
			if err != nil {
				t.Fatal(err)
			}

			ok, err := c.Check(req(t, tt.mod))
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Errorf("Check = %v, want %v", ok, tt.want)
			}
		})
	}
}
