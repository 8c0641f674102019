// Package coordinate implements the Maven coordinate model: parsing and
// rendering of g:a[:e[:c]]:v strings, and projection of a coordinate onto
// the repository path and file name conventions a Maven-style repo expects.
package coordinate

import (
	"fmt"
	"strings"
)

// unversioned identifies an artifact family independent of version; it's
// the key metadata queries and dependency-management lookups use.
type unversioned struct {
	GroupID    string
	ArtifactID string
}

// ManagementKey returns the "groupId:artifactId" string a dependencyManagement
// block keys its entries by.
func (u unversioned) ManagementKey() string {
	return u.GroupID + ":" + u.ArtifactID
}

// Partial identifies an artifact family without a version, used for
// metadata (version-listing) queries.
type Partial struct {
	unversioned
}

// NewPartial constructs a Partial coordinate.
func NewPartial(groupID, artifactID string) Partial {
	return Partial{unversioned{GroupID: groupID, ArtifactID: artifactID}}
}

// GroupID returns the dot-separated group identifier.
func (p Partial) GroupID() string { return p.unversioned.GroupID }

// ArtifactID returns the artifact identifier.
func (p Partial) ArtifactID() string { return p.unversioned.ArtifactID }

// ParsePartial parses a "groupId:artifactId" string.
func ParsePartial(input string) (Partial, error) {
	parts := strings.Split(input, ":")
	if len(parts) != 2 {
		return Partial{}, fmt.Errorf("invalid coordinate %q: expected groupId:artifactId", input)
	}
	if parts[0] == "" || parts[1] == "" {
		return Partial{}, fmt.Errorf("invalid coordinate %q: groupId and artifactId must not be empty", input)
	}
	return NewPartial(parts[0], parts[1]), nil
}

// String renders the coordinate as "groupId:artifactId".
func (p Partial) String() string {
	return p.unversioned.GroupID + ":" + p.unversioned.ArtifactID
}

// GroupPath returns the group ID with dots replaced by slashes.
func (u unversioned) GroupPath() string {
	return strings.ReplaceAll(u.GroupID, ".", "/")
}

// Path returns the partial coordinate's repository path, "group/path/artifactId".
func (p Partial) Path() string {
	return p.GroupPath() + "/" + p.ArtifactID()
}

// MetadataPath returns the path of the top-level maven-metadata.xml for this
// artifact family.
func (p Partial) MetadataPath() string {
	return p.Path() + "/maven-metadata.xml"
}

// Coordinate identifies a specific artifact: group, artifact, version, plus
// an optional extension (defaults to "jar" when rendering or projecting a
// path) and an optional classifier.
type Coordinate struct {
	unversioned
	Version    string
	Extension  string // may be empty; "jar" is the rendering/projection default
	Classifier string // may be empty
}

// New constructs a full Coordinate with default extension/classifier.
func New(groupID, artifactID, version string) Coordinate {
	return Coordinate{unversioned: unversioned{GroupID: groupID, ArtifactID: artifactID}, Version: version}
}

// GroupID returns the dot-separated group identifier.
func (c Coordinate) GroupID() string { return c.unversioned.GroupID }

// ArtifactID returns the artifact identifier.
func (c Coordinate) ArtifactID() string { return c.unversioned.ArtifactID }

// ManagementKey returns the "groupId:artifactId" key dependencyManagement
// resolves this coordinate's missing versions under.
func (c Coordinate) ManagementKey() string { return c.unversioned.ManagementKey() }

// Partial returns the partial (unversioned) coordinate this one belongs to.
func (c Coordinate) Partial() Partial {
	return Partial{c.unversioned}
}

// ExtensionOrJar returns c.Extension, defaulting to "jar".
func (c Coordinate) ExtensionOrJar() string {
	if c.Extension == "" {
		return "jar"
	}
	return c.Extension
}

// Parse parses a colon-delimited coordinate string with 3, 4, or 5 parts:
//
//	g:a:v                     -> version only
//	g:a:extension:v           -> extension + version
//	g:a:extension:classifier:v -> extension + classifier + version
func Parse(input string) (Coordinate, error) {
	parts := strings.Split(input, ":")
	if len(parts) < 3 || len(parts) > 5 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected 3, 4, or 5 colon-separated parts", input)
	}
	groupID, artifactID := parts[0], parts[1]
	if groupID == "" || artifactID == "" {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: groupId and artifactId must not be empty", input)
	}
	c := Coordinate{unversioned: unversioned{GroupID: groupID, ArtifactID: artifactID}}
	switch len(parts) {
	case 3:
		c.Version = parts[2]
	case 4:
		c.Extension = parts[2]
		c.Version = parts[3]
	case 5:
		c.Extension = parts[2]
		c.Classifier = parts[3]
		c.Version = parts[4]
	}
	return c, nil
}

// String renders the coordinate, inverse of Parse with two special cases:
// a classifier-only coordinate materializes "jar" as the extension segment,
// and a "jar" extension with no classifier is omitted entirely (so it
// round-trips through the 3-part form of Parse).
func (c Coordinate) String() string {
	gav := c.unversioned.GroupID + ":" + c.unversioned.ArtifactID
	switch {
	case c.Extension != "" && c.Classifier != "":
		gav += ":" + c.Extension + ":" + c.Classifier
	case c.Extension == "" && c.Classifier != "":
		gav += ":jar:" + c.Classifier
	case c.Extension != "" && c.Extension != "jar":
		gav += ":" + c.Extension
	}
	if c.Version != "" {
		gav += ":" + c.Version
	}
	return gav
}

// IsMetaVersion returns true if the version is the literal (case-insensitive)
// string "LATEST" or "RELEASE".
func (c Coordinate) IsMetaVersion() bool {
	v := strings.ToLower(c.Version)
	return v == "latest" || v == "release"
}

// IsRelease returns true if the version is case-insensitively "RELEASE".
func (c Coordinate) IsRelease() bool {
	return strings.EqualFold(c.Version, "release")
}

// IsSnapshot returns true if the version ends with the case-sensitive
// literal suffix "-SNAPSHOT".
func (c Coordinate) IsSnapshot() bool {
	return strings.HasSuffix(c.Version, "-SNAPSHOT")
}

// Path returns the repository path for this coordinate's own version
// segment: "group/path/artifactId/version".
func (c Coordinate) Path() string {
	return c.GroupPath() + "/" + c.ArtifactID() + "/" + c.Version
}

// MetadataPath returns the path of the per-version maven-metadata.xml
// (present for snapshot artifacts).
func (c Coordinate) MetadataPath() string {
	return c.Path() + "/maven-metadata.xml"
}

// PomPath returns the path of this coordinate's own pom.xml, always using
// the coordinate's own version (never a resolved/classifier/extension
// variant — POMs have no classifier and always end ".pom").
func (c Coordinate) PomPath() string {
	return c.Path() + "/" + c.ArtifactID() + "-" + c.Version + ".pom"
}

// FileName returns "artifactId-version[-classifier].extension", with a
// resolved version substituted in place of c.Version.
func (c Coordinate) FileName(resolvedVersion string) string {
	name := c.ArtifactID() + "-" + resolvedVersion
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.ExtensionOrJar()
}

// ResolvedArtifact pairs a coordinate with the concrete version to use when
// projecting its download URL and local file name. For ordinary versions
// ResolvedVersion equals Coordinate.Version; for snapshots it is the
// timestamped version served by the repository, while the URL path's
// version *segment* still uses the coordinate's own "X-SNAPSHOT" string.
type ResolvedArtifact struct {
	Coordinate      Coordinate
	ResolvedVersion string
}

// URLPath returns the path (relative to a repository base) this resolved
// artifact's file lives at.
func (r ResolvedArtifact) URLPath() string {
	return r.Coordinate.GroupPath() + "/" + r.Coordinate.ArtifactID() + "/" + r.Coordinate.Version + "/" + r.Coordinate.FileName(r.ResolvedVersion)
}

// FileName returns the local file name this resolved artifact downloads to.
func (r ResolvedArtifact) FileName() string {
	return r.Coordinate.FileName(r.ResolvedVersion)
}
