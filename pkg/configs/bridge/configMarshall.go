package bridge

import (
	"fmt"
	"net/url"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
)

const (
	DefaultPort           = 8000
	DefaultReadTimeout    = time.Minute
	DefaultWriteTimeout   = 30 * time.Minute
	DefaultStudyDirectory = "/study"
)

// DefaultImporter is the command line of the cBioPortal importer.
var DefaultImporter = []string{"python", "/scripts/importer/metaImport.py"}

// Configuration of the bridge server, as written in a file.
//
// This type is mutable. Use Seal to get the readonly version, Config.
type ConfigMarshall struct {
	Server         *ServerConfigMarshall     `yaml:"server,omitempty"`
	StudyDirectory string                    `yaml:"studyDirectory,omitempty"`
	CBioPortal     *CBioPortalConfigMarshall `yaml:"cbioportal"`
	Galaxy         *GalaxyConfigMarshall     `yaml:"galaxy,omitempty"`
	XNAT           *XNATConfigMarshall       `yaml:"xnat,omitempty"`
	Images         *ImageConfigMarshall      `yaml:"imageUpload,omitempty"`
	Database       *DatabaseConfigMarshall   `yaml:"database,omitempty"`
}

type ServerConfigMarshall struct {
	Port         int    `yaml:"port,omitempty"`
	ReadTimeout  string `yaml:"readTimeout,omitempty"`
	WriteTimeout string `yaml:"writeTimeout,omitempty"`
}

type CBioPortalConfigMarshall struct {
	URL         string   `yaml:"url"`
	CacheAPIKey string   `yaml:"cacheApiKey"`
	Importer    []string `yaml:"importer,omitempty"`
	CacheClear  string   `yaml:"cacheClear,omitempty"`
}

type GalaxyConfigMarshall struct {
	URL          string                   `yaml:"url"`
	WorkflowName string                   `yaml:"workflowName,omitempty"`
	Retry        *RetryConfigMarshall     `yaml:"retry,omitempty"`
	Readiness    *ReadinessConfigMarshall `yaml:"readiness,omitempty"`
}

type RetryConfigMarshall struct {
	MaxAttempts int    `yaml:"maxAttempts,omitempty"`
	Delay       string `yaml:"delay,omitempty"`
}

type ReadinessConfigMarshall struct {
	Interval string `yaml:"interval,omitempty"`
	Tries    int    `yaml:"tries,omitempty"`
}

type XNATConfigMarshall struct {
	URL string `yaml:"url"`
}

type ImageConfigMarshall struct {
	Directory string `yaml:"directory"`
	PublicURL string `yaml:"publicUrl,omitempty"`
}

type DatabaseConfigMarshall struct {
	URI string `yaml:"uri"`
}

// Seal verifies the configuration and creates the readonly version of this.
//
// Defaults are filled for missing optional values.
func (m *ConfigMarshall) Seal() (conf *Config, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if serr, ok := r.(misconfiguration); ok {
			conf, err = nil, serr
			return
		}
		panic(r)
	}()
	return nonnil(m, "(root)").trySeal("(root)"), nil
}

func (m *ConfigMarshall) trySeal(path string) *Config {
	studyDir := m.StudyDirectory
	if studyDir == "" {
		studyDir = DefaultStudyDirectory
	}

	conf := &Config{
		server:         m.Server.trySeal(path + ".server"),
		studyDirectory: studyDir,
		cbioportal:     nonnil(m.CBioPortal, path+".cbioportal").trySeal(path + ".cbioportal"),
	}
	if m.Galaxy != nil {
		conf.galaxy = m.Galaxy.trySeal(path + ".galaxy")
	}
	if m.XNAT != nil {
		conf.xnat = &XNATConfig{url: validURL(m.XNAT.URL, path+".xnat.url")}
	}
	if m.Images != nil {
		conf.images = &ImageConfig{
			directory: required(m.Images.Directory, path+".imageUpload.directory"),
			publicURL: m.Images.PublicURL,
		}
	}
	if m.Database != nil {
		conf.database = m.Database.URI
	}
	return conf
}

// nil receiver is allowed; then all defaults are used.
func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	if s == nil {
		s = &ServerConfigMarshall{}
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || 65535 < port {
		fail("%s.port is out of range: %d", path, port)
	}
	return &ServerConfig{
		port:         port,
		readTimeout:  duration(s.ReadTimeout, DefaultReadTimeout, path+".readTimeout"),
		writeTimeout: duration(s.WriteTimeout, DefaultWriteTimeout, path+".writeTimeout"),
	}
}

func (c *CBioPortalConfigMarshall) trySeal(path string) *CBioPortalConfig {
	importer := c.Importer
	if len(importer) == 0 {
		importer = DefaultImporter
	}
	method := CacheClearMethod(c.CacheClear)
	switch method {
	case "":
		method = CacheClearHTTP
	case CacheClearHTTP, CacheClearCommand:
	default:
		fail("%s.cacheClear should be %q or %q, but %q", path, CacheClearHTTP, CacheClearCommand, c.CacheClear)
	}
	return &CBioPortalConfig{
		url:         validURL(c.URL, path+".url"),
		cacheAPIKey: required(c.CacheAPIKey, path+".cacheApiKey"),
		importer:    importer,
		cacheClear:  method,
	}
}

func (g *GalaxyConfigMarshall) trySeal(path string) *GalaxyConfig {
	policy := retry.DefaultPolicy()
	if g.Retry != nil {
		if g.Retry.MaxAttempts < 0 {
			fail("%s.retry.maxAttempts should be positive", path)
		} else if g.Retry.MaxAttempts != 0 {
			policy.MaxAttempts = g.Retry.MaxAttempts
		}
		policy.Delay = duration(g.Retry.Delay, policy.Delay, path+".retry.delay")
	}

	readiness := g.Readiness
	if readiness == nil {
		readiness = &ReadinessConfigMarshall{}
	}
	tries := readiness.Tries
	if tries <= 0 {
		tries = 24
	}

	return &GalaxyConfig{
		url:           validURL(g.URL, path+".url"),
		workflowName:  g.WorkflowName,
		retry:         policy,
		readyInterval: duration(readiness.Interval, 5*time.Second, path+".readiness.interval"),
		readyTries:    tries,
	}
}

type misconfiguration struct {
	message string
}

func (m misconfiguration) Error() string {
	return "misconfiguration: " + m.message
}

func fail(format string, args ...any) {
	panic(misconfiguration{message: fmt.Sprintf(format, args...)})
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		fail("%s is required", path)
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		fail("%s is required", path)
	}
	return v
}

// validURL requires an absolute http(s) URL.
func validURL(s string, path string) string {
	u, err := url.Parse(required(s, path))
	if err != nil {
		fail("%s is not a URL: %s", path, err)
	}
	if u.Scheme == "" {
		fail("%s: missing scheme in URL: %s", path, s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		fail("%s: unsupported scheme in URL: %s", path, s)
	}
	if u.Host == "" {
		fail("%s: missing host in URL: %s", path, s)
	}
	return s
}

func duration(s string, def time.Duration, path string) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		fail("%s can not be parsed: %s", path, err)
	}
	if d <= 0 {
		fail("%s should be positive: %s", path, s)
	}
	return d
}
