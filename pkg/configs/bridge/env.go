package bridge

// Environment variables read by FromEnv.
const (
	EnvStudyDirectory = "STUDY_DIRECTORY"
	EnvCBioPortalURL  = "CBIOPORTAL_URL"
	EnvCacheAPIKey    = "CBIOPORTAL_CACHE_API_KEY"
	EnvGalaxyURL      = "GALAXY_URL"
	EnvGalaxyWorkflow = "GALAXY_WORKFLOW_NAME"
	EnvXNATURL        = "XNAT_URL"
	EnvImageUploadDir = "IMAGE_UPLOAD_DIRECTORY"
	EnvDatabaseURI    = "BRIDGE_DB_URI"
)

// FromEnv fills values missing in m with environment variables.
//
// Values in m take precedence. m is not modified; a new ConfigMarshall is returned.
func FromEnv(m *ConfigMarshall, lookup func(string) (string, bool)) *ConfigMarshall {
	out := &ConfigMarshall{}
	if m != nil {
		*out = *m
	}
	env := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return v
	}
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = env(key)
		}
	}

	fill(&out.StudyDirectory, EnvStudyDirectory)

	cbio := CBioPortalConfigMarshall{}
	if out.CBioPortal != nil {
		cbio = *out.CBioPortal
	}
	fill(&cbio.URL, EnvCBioPortalURL)
	fill(&cbio.CacheAPIKey, EnvCacheAPIKey)
	if out.CBioPortal != nil || cbio.URL != "" || cbio.CacheAPIKey != "" {
		out.CBioPortal = &cbio
	}

	if out.Galaxy != nil {
		g := *out.Galaxy
		fill(&g.URL, EnvGalaxyURL)
		fill(&g.WorkflowName, EnvGalaxyWorkflow)
		out.Galaxy = &g
	} else if u := env(EnvGalaxyURL); u != "" {
		out.Galaxy = &GalaxyConfigMarshall{URL: u, WorkflowName: env(EnvGalaxyWorkflow)}
	}

	if out.XNAT != nil {
		x := *out.XNAT
		fill(&x.URL, EnvXNATURL)
		out.XNAT = &x
	} else if u := env(EnvXNATURL); u != "" {
		out.XNAT = &XNATConfigMarshall{URL: u}
	}

	if out.Images != nil {
		i := *out.Images
		fill(&i.Directory, EnvImageUploadDir)
		out.Images = &i
	} else if d := env(EnvImageUploadDir); d != "" {
		out.Images = &ImageConfigMarshall{Directory: d}
	}

	if out.Database != nil {
		d := *out.Database
		fill(&d.URI, EnvDatabaseURI)
		out.Database = &d
	} else if u := env(EnvDatabaseURI); u != "" {
		out.Database = &DatabaseConfigMarshall{URI: u}
	}

	return out
}
