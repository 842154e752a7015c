package rucio

// RSEInfo is the subset of RSE properties the upload client needs.
type RSEInfo struct {
	Name              string
	Deterministic     bool
	AvailabilityWrite bool
}

type rseResponse struct {
	RSE               string `json:"rse"`
	Deterministic     bool   `json:"deterministic"`
	AvailabilityWrite *bool  `json:"availability_write"`
	// legacy bitmask: 4 read, 2 write, 1 delete
	Availability *int `json:"availability"`
}

func (r rseResponse) info() RSEInfo {
	info := RSEInfo{Name: r.RSE, Deterministic: r.Deterministic, AvailabilityWrite: true}
	switch {
	case r.AvailabilityWrite != nil:
		info.AvailabilityWrite = *r.AvailabilityWrite
	case r.Availability != nil:
		info.AvailabilityWrite = *r.Availability&2 != 0
	}
	return info
}

// FileMeta is the catalogue's record of a file DID.
type FileMeta struct {
	Scope   string `json:"scope"`
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes"`
	Adler32 string `json:"adler32"`
	MD5     string `json:"md5"`
}

// ReplicaFile is one entry of an add-replicas call.
type ReplicaFile struct {
	Scope   string `json:"scope"`
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes"`
	Adler32 string `json:"adler32"`
	MD5     string `json:"md5,omitempty"`
	PFN     string `json:"pfn,omitempty"`
}

// DIDRef names a DID to attach.
type DIDRef struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}
