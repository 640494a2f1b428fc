package bridge_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/configs/bridge"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("it loads config from yaml", func(t *testing.T) {
		conf, err := bridge.LoadConfig("testdata/bridge.yaml", env(map[string]string{
			bridge.EnvCBioPortalURL: "http://ignored:8080",
		}))
		if err != nil {
			t.Fatal(err)
		}

		if conf.Server().Port() != 18000 {
			t.Errorf(".server.port: %d", conf.Server().Port())
		}
		if conf.Server().ReadTimeout() != 30*time.Second || conf.Server().WriteTimeout() != time.Hour {
			t.Errorf(".server timeouts: %s, %s", conf.Server().ReadTimeout(), conf.Server().WriteTimeout())
		}
		if conf.StudyDirectory() != "/data/study" {
			t.Errorf(".studyDirectory: %s", conf.StudyDirectory())
		}

		cbio := conf.CBioPortal()
		if cbio.URL() != "http://cbioportal:8080" {
			t.Errorf(".cbioportal.url: %s (file should take precedence)", cbio.URL())
		}
		if cbio.CacheAPIKey() != "fake-cache-key" {
			t.Errorf(".cbioportal.cacheApiKey: %s", cbio.CacheAPIKey())
		}
		if want := []string{"/usr/bin/python3", "/opt/importer/metaImport.py"}; !slices.Equal(cbio.Importer(), want) {
			t.Errorf(".cbioportal.importer: %v", cbio.Importer())
		}
		if cbio.CacheClear() != bridge.CacheClearCommand {
			t.Errorf(".cbioportal.cacheClear: %s", cbio.CacheClear())
		}

		g := conf.Galaxy()
		if g == nil {
			t.Fatal(".galaxy is nil")
		}
		if g.URL() != "https://usegalaxy.example.org" || g.WorkflowName() != "cbioportal-analysis" {
			t.Errorf(".galaxy: %s, %s", g.URL(), g.WorkflowName())
		}
		if g.Retry() != (retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second}) {
			t.Errorf(".galaxy.retry: %+v", g.Retry())
		}
		if g.ReadyInterval() != time.Second || g.ReadyTries() != 10 {
			t.Errorf(".galaxy.readiness: %s, %d", g.ReadyInterval(), g.ReadyTries())
		}

		if conf.XNAT().URL() != "https://xnat.example.org" {
			t.Errorf(".xnat.url: %s", conf.XNAT().URL())
		}
		if conf.Images().Directory() != "/data/images" || conf.Images().PublicURL() != "https://bridge.example.org" {
			t.Errorf(".imageUpload: %s, %s", conf.Images().Directory(), conf.Images().PublicURL())
		}
		if conf.Database() != "postgres://bridge:secret@db:5432/bridge" {
			t.Errorf(".database.uri: %s", conf.Database())
		}
	})

	t.Run("it loads config from environment only", func(t *testing.T) {
		conf, err := bridge.LoadConfig("", env(map[string]string{
			bridge.EnvCBioPortalURL: "http://cbioportal:8080",
			bridge.EnvCacheAPIKey:   "k",
			bridge.EnvGalaxyURL:     "http://galaxy",
			bridge.EnvXNATURL:       "http://xnat",
		}))
		if err != nil {
			t.Fatal(err)
		}
		if conf.StudyDirectory() != bridge.DefaultStudyDirectory {
			t.Errorf("studyDirectory: %s", conf.StudyDirectory())
		}
		if conf.Server().Port() != bridge.DefaultPort {
			t.Errorf("port: %d", conf.Server().Port())
		}
		if !slices.Equal(conf.CBioPortal().Importer(), bridge.DefaultImporter) {
			t.Errorf("importer: %v", conf.CBioPortal().Importer())
		}
		if conf.CBioPortal().CacheClear() != bridge.CacheClearHTTP {
			t.Errorf("cacheClear: %s", conf.CBioPortal().CacheClear())
		}
		if conf.Galaxy() == nil || conf.Galaxy().Retry() != retry.DefaultPolicy() || conf.Galaxy().ReadyTries() != 24 {
			t.Errorf("galaxy: %+v", conf.Galaxy())
		}
		if conf.Images() != nil {
			t.Error("images should not be configured")
		}
		if conf.Database() != "" {
			t.Errorf("database: %s", conf.Database())
		}
	})
}

func TestUnmarshal_Misconfiguration(t *testing.T) {
	for name, testcase := range map[string]struct {
		when string
		then string
	}{
		"empty": {
			when: ``,
			then: "(root).cbioportal is required",
		},
		"no api key": {
			when: "cbioportal:\n  url: http://cbioportal:8080\n",
			then: "(root).cbioportal.cacheApiKey is required",
		},
		"url without scheme": {
			when: "cbioportal:\n  url: cbioportal:8080/x\n  cacheApiKey: k\n",
			then: "unsupported scheme",
		},
		"url with host only": {
			when: "cbioportal:\n  url: cbioportal\n  cacheApiKey: k\n",
			then: "missing scheme",
		},
		"ftp url": {
			when: "cbioportal:\n  url: ftp://cbioportal\n  cacheApiKey: k\n",
			then: "unsupported scheme",
		},
		"unknown cache clear method": {
			when: "cbioportal:\n  url: http://cbioportal\n  cacheApiKey: k\n  cacheClear: telnet\n",
			then: "(root).cbioportal.cacheClear",
		},
		"broken duration": {
			when: "server:\n  readTimeout: soon\ncbioportal:\n  url: http://cbioportal\n  cacheApiKey: k\n",
			then: "(root).server.readTimeout can not be parsed",
		},
		"image upload without directory": {
			when: "cbioportal:\n  url: http://cbioportal\n  cacheApiKey: k\nimageUpload:\n  publicUrl: http://x\n",
			then: "(root).imageUpload.directory is required",
		},
	} {
		t.Run(name, func(t *testing.T) {
			conf, err := bridge.Unmarshal([]byte(testcase.when))
			if err == nil {
				t.Fatalf("expected error, but got %+v", conf)
			}
			if !strings.Contains(err.Error(), testcase.then) {
				t.Errorf("error should mention %q, but %q", testcase.then, err)
			}
		})
	}
}
