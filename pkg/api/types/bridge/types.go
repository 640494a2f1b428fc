// Package bridge defines request and response bodies of the bridge API.
package bridge

import "time"

// TimelineExport is a timeline of a case, merged into the incremental import directory.
type TimelineExport struct {
	DataContent string `json:"dataContent"`
	MetaContent string `json:"metaContent"`
	StudyId     string `json:"studyId"`
	CaseId      string `json:"caseId"`
	Suffix      string `json:"suffix"`
}

// ResourceExport is resource definitions and resources of patients of a study.
type ResourceExport struct {
	DataDefinitionContent string `json:"dataDefinitionContent"`
	MetaDefinitionContent string `json:"metaDefinitionContent"`
	DataPatientContent    string `json:"dataPatientContent"`
	MetaPatientContent    string `json:"metaPatientContent"`
	StudyId               string `json:"studyId"`
}

// GalaxyExport is data to be uploaded to Galaxy.
//
// Data is either tab-separated text with a header, or a URL.
type GalaxyExport struct {
	GalaxyToken       string `json:"galaxyToken"`
	GalaxyHistoryName string `json:"galaxyHistoryName"`
	StudyId           string `json:"studyId"`
	CaseId            string `json:"caseId"`
	Data              string `json:"data"`
}

// ImportRequest asks to rerun the importer for a study.
type ImportRequest struct {
	// "full" or "incremental". empty means "full".
	Mode string `json:"mode"`
}

type Message struct {
	Message string `json:"message"`
}

type ImportResult struct {
	Message string `json:"message"`
	JobId   string `json:"jobId"`
	Output  string `json:"output,omitempty"`
}

type CacheResult struct {
	Message string `json:"message"`
	Output  string `json:"output,omitempty"`
}

type ImageUploaded struct {
	Info string `json:"info"`
	URL  string `json:"url"`
}

type Detail struct {
	Detail string `json:"detail"`
}

type ImportJob struct {
	Id         string    `json:"id"`
	StudyId    string    `json:"studyId"`
	Directory  string    `json:"directory"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exitCode"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
