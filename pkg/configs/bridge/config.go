// Package bridge is the configuration of the bridge server.
package bridge

import (
	"slices"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
)

// Config is the readonly configuration of the bridge server.
//
// To get a Config, use Unmarshal, LoadConfig or Seal.
type Config struct {
	server         *ServerConfig
	studyDirectory string
	cbioportal     *CBioPortalConfig
	galaxy         *GalaxyConfig
	xnat           *XNATConfig
	images         *ImageConfig
	database       string
}

func (c *Config) Server() *ServerConfig {
	return c.server
}

// Root of study directories. default = "/study"
func (c *Config) StudyDirectory() string {
	return c.studyDirectory
}

func (c *Config) CBioPortal() *CBioPortalConfig {
	return c.cbioportal
}

// Galaxy connection. nil when Galaxy is not configured.
func (c *Config) Galaxy() *GalaxyConfig {
	return c.galaxy
}

// XNAT connection. nil when XNAT is not configured.
func (c *Config) XNAT() *XNATConfig {
	return c.xnat
}

// Image uploads. nil when image upload is not configured.
func (c *Config) Images() *ImageConfig {
	return c.images
}

// Connection string of the import job ledger. Empty when no ledger is used.
func (c *Config) Database() string {
	return c.database
}

type ServerConfig struct {
	port         int
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// default = 8000
func (s *ServerConfig) Port() int {
	return s.port
}

func (s *ServerConfig) ReadTimeout() time.Duration {
	return s.readTimeout
}

// importer runs while the response is pending, so this should be long enough.
func (s *ServerConfig) WriteTimeout() time.Duration {
	return s.writeTimeout
}

// CacheClearMethod is how the cache of cBioPortal is cleared.
type CacheClearMethod string

const (
	// send the request by the server itself.
	CacheClearHTTP CacheClearMethod = "http"

	// send the request by curl.
	CacheClearCommand CacheClearMethod = "command"
)

type CBioPortalConfig struct {
	url         string
	cacheAPIKey string
	importer    []string
	cacheClear  CacheClearMethod
}

func (c *CBioPortalConfig) URL() string {
	return c.url
}

func (c *CBioPortalConfig) CacheAPIKey() string {
	return c.cacheAPIKey
}

// Command line of the importer, without arguments for each import.
func (c *CBioPortalConfig) Importer() []string {
	return slices.Clone(c.importer)
}

func (c *CBioPortalConfig) CacheClear() CacheClearMethod {
	return c.cacheClear
}

type GalaxyConfig struct {
	url           string
	workflowName  string
	retry         retry.Policy
	readyInterval time.Duration
	readyTries    int
}

func (g *GalaxyConfig) URL() string {
	return g.url
}

// Workflow invoked for uploads by /galaxy-workflow/. Empty if not configured.
func (g *GalaxyConfig) WorkflowName() string {
	return g.workflowName
}

// Retry policy of connecting to Galaxy.
func (g *GalaxyConfig) Retry() retry.Policy {
	return g.retry
}

// Interval between polls for uploaded datasets.
func (g *GalaxyConfig) ReadyInterval() time.Duration {
	return g.readyInterval
}

// Polls for uploaded datasets before giving up.
func (g *GalaxyConfig) ReadyTries() int {
	return g.readyTries
}

type XNATConfig struct {
	url string
}

func (x *XNATConfig) URL() string {
	return x.url
}

type ImageConfig struct {
	directory string
	publicURL string
}

// Where uploaded images are stored.
func (i *ImageConfig) Directory() string {
	return i.directory
}

// URL prefix of uploaded images in responses. Empty means a path relative to the server.
func (i *ImageConfig) PublicURL() string {
	return i.publicURL
}
