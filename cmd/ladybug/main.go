package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/lovebughq/ladybug"
	"github.com/lovebughq/ladybug/internal"
	liblovebug "github.com/lovebughq/ladybug/lib"
	"github.com/lovebughq/ladybug/lib/identity"
	identitykv "github.com/lovebughq/ladybug/lib/identity/kv"
	"github.com/lovebughq/ladybug/lib/identity/profileapi"
	"github.com/lovebughq/ladybug/lib/policy"
	"github.com/lovebughq/ladybug/lib/store"
	_ "github.com/lovebughq/ladybug/lib/store/all"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	basePrefix               = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /myapp")
	bind                     = flag.String("bind", ":8839", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	cookieDomain             = flag.String("cookie-domain", "", "if set, the top-level domain that the session cookie will be valid for")
	cookieExpiration         = flag.Duration("cookie-expiration-time", ladybug.SessionDefaultExpirationTime, "how long a challenge session cookie is valid for")
	cookiePrefix             = flag.String("cookie-prefix", "lovebug.app-ladybug", "prefix for browser cookies created by ladybug")
	cookiePartitioned        = flag.Bool("cookie-partitioned", false, "if true, sets the partitioned flag on session cookies, enabling CHIPS support")
	cookieSecure             = flag.Bool("cookie-secure", true, "if true, sets the secure flag on session cookies")
	defaultVariant           = flag.String("default-variant", ladybug.DefaultVariant, "challenge variant used when a policy rule doesn't pick one")
	forcedLanguage           = flag.String("forced-language", "", "if set, this language is being used instead of the one from the request's Accept-Language header")
	hs512Secret              = flag.String("hs512-secret", "", "secret used to sign JWTs, uses ed25519 if not set")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign JWTs, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	healthcheck              = flag.Bool("healthcheck", false, "run a health check against ladybug")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	policyFname              = flag.String("policy-fname", "", "full path to the policy document (defaults to a sensible built-in policy)")
	profileAPIToken          = flag.String("profile-api-token", "", "service role token for the profile API")
	profileAPIURL            = flag.String("profile-api-url", "", "base URL of the LoveBug profile API; if unset, verified flags are kept in the session store")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	storeBackend             = flag.String("store-backend", "memory", "which storage backend to use for sessions and cooldowns")
	storeParameters          = flag.String("store-parameters", "{}", "JSON configuration blob for the storage backend")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running ladybug on bare metal")
	versionFlag              = flag.Bool("version", false, "print ladybug version")
	xffStripPrivate          = flag.Bool("xff-strip-private", true, "if set, strip private addresses from X-Forwarded-For")
)

func keyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("supplied key is not hex-encoded: %w", err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("supplied key is not %d bytes long, got %d bytes", ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + ladybug.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		// keep compatibility
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		err = os.Chmod(address, os.FileMode(mode))
		if err != nil {
			if err := listener.Close(); err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func buildStore(ctx context.Context, policies *policy.ParsedConfig) store.Interface {
	backend := *storeBackend
	params := json.RawMessage(*storeParameters)

	// the policy file wins over the command line so one document can
	// describe a whole deployment
	if policies.Store != nil {
		backend = policies.Store.Backend
		params = policies.Store.Parameters
	}

	fac, ok := store.Get(backend)
	if !ok {
		log.Fatalf("unknown store backend %q, have: %v", backend, store.Backends())
	}

	if err := fac.Valid(params); err != nil {
		log.Fatalf("invalid store parameters for backend %q: %v", backend, err)
	}

	result, err := fac.Build(ctx, params)
	if err != nil {
		log.Fatalf("can't build store backend %q: %v", backend, err)
	}

	return result
}

func buildIdentity(backing store.Interface) identity.Store {
	if *profileAPIURL == "" {
		slog.Warn("PROFILE_API_URL is not set, verified flags will only live in the session store")
		return identitykv.New(backing)
	}

	client, err := profileapi.New(*profileAPIURL, *profileAPIToken)
	if err != nil {
		log.Fatalf("can't build profile API client: %v", err)
	}

	return client
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("ladybug", ladybug.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}

	policies, err := liblovebug.LoadPoliciesOrDefault(*policyFname, *defaultVariant)
	if err != nil {
		log.Fatalf("can't parse policy file: %v", err)
	}

	var ed25519Priv ed25519.PrivateKey
	if *hs512Secret != "" && (*ed25519PrivateKeyHex != "" || *ed25519PrivateKeyHexFile != "") {
		log.Fatal("do not specify both HS512 and ED25519 secrets")
	} else if *hs512Secret == "" && *ed25519PrivateKeyHex != "" && *ed25519PrivateKeyHexFile != "" {
		log.Fatal("do not specify both ED25519_PRIVATE_KEY_HEX and ED25519_PRIVATE_KEY_HEX_FILE")
	} else if *ed25519PrivateKeyHex != "" {
		ed25519Priv, err = keyFromHex(*ed25519PrivateKeyHex)
		if err != nil {
			log.Fatalf("failed to parse and validate ED25519_PRIVATE_KEY_HEX: %v", err)
		}
	} else if *ed25519PrivateKeyHexFile != "" {
		hexFile, err := os.ReadFile(*ed25519PrivateKeyHexFile)
		if err != nil {
			log.Fatalf("failed to read ED25519_PRIVATE_KEY_HEX_FILE %s: %v", *ed25519PrivateKeyHexFile, err)
		}

		ed25519Priv, err = keyFromHex(string(bytes.TrimSpace(hexFile)))
		if err != nil {
			log.Fatalf("failed to parse and validate content of ED25519_PRIVATE_KEY_HEX_FILE: %v", err)
		}
	}

	ladybug.SessionCookieName = *cookiePrefix + "-session"
	ladybug.ForcedLanguage = *forcedLanguage

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backing := buildStore(ctx, policies)

	s, err := liblovebug.New(liblovebug.Options{
		Policy:            policies,
		Store:             backing,
		Identity:          buildIdentity(backing),
		BasePrefix:        *basePrefix,
		CookieDomain:      *cookieDomain,
		CookieExpiration:  *cookieExpiration,
		CookieName:        ladybug.SessionCookieName,
		CookiePartitioned: *cookiePartitioned,
		CookieSecure:      *cookieSecure,
		ED25519PrivateKey: ed25519Priv,
		HS512Secret:       []byte(*hs512Secret),
	})
	if err != nil {
		log.Fatalf("can't construct verification server: %v", err)
	}

	wg := new(sync.WaitGroup)

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)
	h = internal.XForwardedForUpdate(*xffStripPrivate, h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", ladybug.Version,
		"default-variant", *defaultVariant,
		"store-backend", *storeBackend,
		"base-prefix", *basePrefix,
		"cookie-expiration-time", *cookieExpiration,
		"use-remote-address", *useRemoteAddress,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(ladybug.BasePrefix+"/metrics", promhttp.Handler())
	mux.HandleFunc(ladybug.BasePrefix+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	if *healthcheck {
		log.Println("running healthcheck")
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
