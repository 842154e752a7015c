package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yourorg/rucio-tools/internal/config"
)

// LFN2PFN returns the path of scope:name relative to the RSE root.
//
// hash:     scope/ab/cd/name where abcd... is md5("scope:name"); user.* and
// group.* scopes are split on dots, so user.jdoe becomes user/jdoe.
// identity: scope/name.
func LFN2PFN(algorithm, scope, name string) (string, error) {
	switch algorithm {
	case config.LFN2PFNHash, "":
		sum := md5.Sum([]byte(scope + ":" + name))
		h := hex.EncodeToString(sum[:])
		dir := scope
		if strings.HasPrefix(scope, "user") || strings.HasPrefix(scope, "group") {
			dir = strings.ReplaceAll(scope, ".", "/")
		}
		return dir + "/" + h[0:2] + "/" + h[2:4] + "/" + name, nil
	case config.LFN2PFNIdentity:
		return scope + "/" + name, nil
	default:
		return "", fmt.Errorf("unknown lfn2pfn algorithm %q", algorithm)
	}
}

// Destination resolves where scope:name lives on rse: the storage URI the
// bytes are written to and the PFN registered in the catalogue (empty when
// the RSE has no PFN prefix and the catalogue derives it).
func Destination(rse config.RSE, scope, name string) (objectURI, pfn string, err error) {
	rel, err := LFN2PFN(rse.LFN2PFN, scope, name)
	if err != nil {
		return "", "", err
	}
	objectURI = strings.TrimSuffix(rse.Prefix, "/") + "/" + rel
	if rse.PFNPrefix != "" {
		pfn = strings.TrimSuffix(rse.PFNPrefix, "/") + "/" + rel
	}
	return objectURI, pfn, nil
}
