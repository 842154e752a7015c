package types

// UploadItem describes one local file to place on an RSE and register
// under scope:name, optionally attached to a dataset.
type UploadItem struct {
	Path         string `json:"path"`
	RSE          string `json:"rse"`
	DIDScope     string `json:"did_scope"`
	DIDName      string `json:"did_name"`
	DatasetScope string `json:"dataset_scope,omitempty"`
	DatasetName  string `json:"dataset_name,omitempty"`
}

// DID renders scope:name.
func (u UploadItem) DID() string { return u.DIDScope + ":" + u.DIDName }

// HasDataset reports whether the file is attached to a dataset after registration.
func (u UploadItem) HasDataset() bool { return u.DatasetScope != "" && u.DatasetName != "" }

// UploadState is the final state of one file.
type UploadState string

const (
	// StateDone means the file was transferred and registered.
	StateDone UploadState = "done"
	// StateSkipped means the file was already on the RSE and in the catalogue.
	StateSkipped UploadState = "skipped"
	// StateFailed means the file was not (fully) registered.
	StateFailed UploadState = "failed"
	// StatePlanned is used by dry runs.
	StatePlanned UploadState = "planned"
)

// FileReport is what the upload client learned and did for one item.
type FileReport struct {
	Item      UploadItem  `json:"item"`
	Bytes     int64       `json:"bytes"`
	Adler32   string      `json:"adler32,omitempty"`
	MD5       string      `json:"md5,omitempty"`
	ObjectURI string      `json:"object_uri,omitempty"` // where the bytes live, s3:// or file://
	PFN       string      `json:"pfn,omitempty"`        // what the catalogue is told
	State     UploadState `json:"state"`
	Error     string      `json:"error,omitempty"`
}
