// Package metadata implements a streaming parser for a Maven repository's
// maven-metadata.xml, producing a RepositoryMetadata record.
package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Error is raised for any structural or schema failure while parsing
// maven-metadata.xml.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "malformed metadata: " + e.Message }

func errorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Snapshot is the per-version snapshot pointer: a timestamp and build
// number identifying the most recently deployed snapshot build.
type Snapshot struct {
	Timestamp   string
	BuildNumber int
}

// Tag returns the "timestamp-buildNumber" candidate tag used to locate the
// corresponding SnapshotVersion entry.
func (s Snapshot) Tag() string {
	return fmt.Sprintf("%s-%d", s.Timestamp, s.BuildNumber)
}

// SnapshotVersion names one exact file version available in a snapshot
// directory.
type SnapshotVersion struct {
	Value      string
	Updated    string
	Classifier string
	Extension  string
}

// Versioning is the <versioning> block of maven-metadata.xml. Every field
// is optional; which ones are populated depends on whether this is a
// top-level artifact metadata file or a per-version snapshot metadata file.
type Versioning struct {
	Latest           string
	Release          string
	Versions         []string
	LastUpdated      string
	Snapshot         *Snapshot
	SnapshotVersions []SnapshotVersion
}

// RepositoryMetadata is the parsed result of a maven-metadata.xml document.
type RepositoryMetadata struct {
	GroupID    string
	ArtifactID string
	Versioning Versioning
}

// Parse reads and parses a maven-metadata.xml document from r.
func Parse(r io.Reader) (*RepositoryMetadata, error) {
	dec := xml.NewDecoder(r)
	// Treat any declared charset as already being compatible with what the
	// stdlib understands; these documents are effectively always UTF-8.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	var groupID, artifactID string
	var haveGroupID, haveArtifactID, haveVersioning bool
	var versioning Versioning

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errorf("xml decode error: %s", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "groupId":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			groupID = s
			haveGroupID = true
		case "artifactId":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			artifactID = s
			haveArtifactID = true
		case "versioning":
			v, err := parseVersioning(dec)
			if err != nil {
				return nil, err
			}
			versioning = v
			haveVersioning = true
		}
	}
	if !haveGroupID {
		return nil, errorf("missing groupId")
	}
	if !haveArtifactID {
		return nil, errorf("missing artifactId")
	}
	if !haveVersioning {
		return nil, errorf("missing versioning block")
	}
	return &RepositoryMetadata{GroupID: groupID, ArtifactID: artifactID, Versioning: versioning}, nil
}

func parseVersioning(dec *xml.Decoder) (Versioning, error) {
	var v Versioning
	var versions []string
	var snapshotVersions []SnapshotVersion
	for {
		tok, err := dec.Token()
		if err != nil {
			return v, errorf("xml decode error in versioning: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "versioning" {
				if versions != nil {
					v.Versions = versions
				}
				if snapshotVersions != nil {
					v.SnapshotVersions = snapshotVersions
				}
				return v, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "latest":
				s, err := characterData(dec)
				if err != nil {
					return v, err
				}
				v.Latest = s
			case "release":
				s, err := characterData(dec)
				if err != nil {
					return v, err
				}
				v.Release = s
			case "lastUpdated":
				s, err := characterData(dec)
				if err != nil {
					return v, err
				}
				v.LastUpdated = s
			case "version":
				s, err := characterData(dec)
				if err != nil {
					return v, err
				}
				versions = append(versions, s)
			case "snapshot":
				s, err := parseSnapshot(dec)
				if err != nil {
					return v, err
				}
				v.Snapshot = &s
			case "snapshotVersion":
				sv, err := parseSnapshotVersion(dec)
				if err != nil {
					return v, err
				}
				snapshotVersions = append(snapshotVersions, sv)
			default:
				// Unknown or purely-structural elements (e.g. the "versions"
				// and "snapshotVersions" wrappers themselves) are ignored;
				// we don't descend into them explicitly because their
				// children (e.g. "version") are matched directly above
				// regardless of nesting depth.
			}
		}
	}
}

func parseSnapshot(dec *xml.Decoder) (Snapshot, error) {
	var timestamp string
	var buildNumber int
	var haveTimestamp, haveBuildNumber bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return Snapshot{}, errorf("xml decode error in snapshot: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "snapshot" {
				if !haveTimestamp {
					return Snapshot{}, errorf("snapshot missing timestamp")
				}
				if !haveBuildNumber {
					return Snapshot{}, errorf("snapshot missing buildNumber")
				}
				return Snapshot{Timestamp: timestamp, BuildNumber: buildNumber}, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "timestamp":
				s, err := characterData(dec)
				if err != nil {
					return Snapshot{}, err
				}
				timestamp = s
				haveTimestamp = true
			case "buildNumber":
				s, err := characterData(dec)
				if err != nil {
					return Snapshot{}, err
				}
				n, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return Snapshot{}, errorf("bad buildNumber %q: %s", s, err)
				}
				buildNumber = n
				haveBuildNumber = true
			default:
				// Unknown elements are ignored.
			}
		}
	}
}

func parseSnapshotVersion(dec *xml.Decoder) (SnapshotVersion, error) {
	var sv SnapshotVersion
	var haveValue, haveUpdated bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return SnapshotVersion{}, errorf("xml decode error in snapshotVersion: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "snapshotVersion" {
				if !haveValue {
					return SnapshotVersion{}, errorf("snapshotVersion missing value")
				}
				if !haveUpdated {
					return SnapshotVersion{}, errorf("snapshotVersion missing updated")
				}
				return sv, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "value":
				s, err := characterData(dec)
				if err != nil {
					return SnapshotVersion{}, err
				}
				sv.Value = s
				haveValue = true
			case "updated":
				s, err := characterData(dec)
				if err != nil {
					return SnapshotVersion{}, err
				}
				sv.Updated = s
				haveUpdated = true
			case "classifier":
				s, err := characterData(dec)
				if err != nil {
					return SnapshotVersion{}, err
				}
				sv.Classifier = s
			case "extension":
				s, err := characterData(dec)
				if err != nil {
					return SnapshotVersion{}, err
				}
				sv.Extension = s
			default:
				// Unknown elements are ignored.
			}
		}
	}
}

// characterData reads the character data immediately following a
// StartElement and consumes up to (and including) the matching EndElement,
// trimming surrounding whitespace. Nested elements inside what's expected
// to be a leaf do not cause an error: their tags are dropped and their
// character data is appended to the result.
func characterData(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", errorf("xml decode error reading character data: %s", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return strings.TrimSpace(b.String()), nil
			}
			depth--
		}
	}
}

// HasVersion returns true if version appears in the metadata's version
// index.
func (m *RepositoryMetadata) HasVersion(version string) bool {
	for _, v := range m.Versioning.Versions {
		if v == version {
			return true
		}
	}
	return false
}
