// Package pom implements a streaming parser for a Maven project descriptor
// (pom.xml), producing a Project record, plus the non-recursive ${name}
// property substitution the resolver applies to it.
package pom

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/please-build/mvnresolve/internal/coordinate"
)

// Error is raised for any structural or schema failure while parsing pom.xml.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "malformed pom: " + e.Message }

func errorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Dependency is a single <dependency> entry: a coordinate (version may be
// empty, to be resolved later via dependencyManagement) plus an optional
// scope.
type Dependency struct {
	Coordinate coordinate.Coordinate
	Scope      string
}

// Project is the parsed result of a pom.xml document.
type Project struct {
	Coordinate           coordinate.Coordinate
	Parent               *coordinate.Coordinate
	DependencyManagement []Dependency
	Dependencies         []Dependency
	Properties           map[string]string
}

// coordinateBuilder accumulates the fields of a <project>, <parent>, or
// <dependency> block before they're validated and turned into a coordinate.
type coordinateBuilder struct {
	groupID, artifactID, version, extension, classifier string
	haveGroupID, haveArtifactID                         bool
}

func (b coordinateBuilder) toCoordinate() (coordinate.Coordinate, error) {
	if !b.haveGroupID {
		return coordinate.Coordinate{}, errorf("missing groupId")
	}
	if !b.haveArtifactID {
		return coordinate.Coordinate{}, errorf("missing artifactId")
	}
	c := coordinate.New(b.groupID, b.artifactID, b.version)
	c.Extension = b.extension
	c.Classifier = b.classifier
	return c, nil
}

// Parse reads and parses a pom.xml document from r.
func Parse(r io.Reader) (*Project, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	// Find the opening <project> tag; everything outside it (the XML
	// declaration, stray comments) is irrelevant.
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, errorf("no <project> element found")
		}
		if err != nil {
			return nil, errorf("xml decode error: %s", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "project" {
			break
		}
	}
	return parseProject(dec)
}

func parseProject(dec *xml.Decoder) (*Project, error) {
	var self coordinateBuilder
	var parent *coordinate.Coordinate
	var dependencies []Dependency
	var dependencyManagement []Dependency
	properties := map[string]string{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			c, err := self.toCoordinate()
			if err != nil {
				return nil, err
			}
			seedWellKnownProperties(properties, c)
			return &Project{
				Coordinate:           c,
				Parent:               parent,
				DependencyManagement: dependencyManagement,
				Dependencies:         dependencies,
				Properties:           properties,
			}, nil
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
			self.groupID, self.haveGroupID = s, true
		case "artifactId":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			self.artifactID, self.haveArtifactID = s, true
		case "version":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			self.version = s
		case "packaging":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			self.extension = s
		case "classifier":
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			self.classifier = s
		case "parent":
			p, err := parseParent(dec)
			if err != nil {
				return nil, err
			}
			parent = &p
		case "dependencyManagement":
			deps, err := parseDependencyManagement(dec)
			if err != nil {
				return nil, err
			}
			dependencyManagement = deps
		case "dependencies":
			deps, err := parseDependencies(dec)
			if err != nil {
				return nil, err
			}
			dependencies = deps
		case "properties":
			props, err := parseProperties(dec)
			if err != nil {
				return nil, err
			}
			properties = props
		default:
			// Unrecognized top-level elements (build, pluginManagement, url,
			// name, ...) are skipped including their subtree: dec.Token()
			// yields nested elements as a flat stream, so a <build> full of
			// plugins each with their own <groupId> must be consumed whole
			// here, or those nested elements would hit the cases above and
			// clobber the project's own fields.
			if err := skipElement(dec); err != nil {
				return nil, err
			}
		}
	}
}

func parseParent(dec *xml.Decoder) (coordinate.Coordinate, error) {
	var b coordinateBuilder
	for {
		tok, err := dec.Token()
		if err != nil {
			return coordinate.Coordinate{}, errorf("xml decode error in parent: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "parent" {
				if b.version == "" {
					return coordinate.Coordinate{}, errorf("parent missing version")
				}
				return b.toCoordinate()
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "groupId":
				s, err := characterData(dec)
				if err != nil {
					return coordinate.Coordinate{}, err
				}
				b.groupID, b.haveGroupID = s, true
			case "artifactId":
				s, err := characterData(dec)
				if err != nil {
					return coordinate.Coordinate{}, err
				}
				b.artifactID, b.haveArtifactID = s, true
			case "version":
				s, err := characterData(dec)
				if err != nil {
					return coordinate.Coordinate{}, err
				}
				b.version = s
			default:
				// relativePath and similar are ignored.
			}
		}
	}
}

func parseDependency(dec *xml.Decoder) (Dependency, error) {
	var b coordinateBuilder
	var scope string
	for {
		tok, err := dec.Token()
		if err != nil {
			return Dependency{}, errorf("xml decode error in dependency: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "dependency" {
				c, err := b.toCoordinate()
				if err != nil {
					return Dependency{}, err
				}
				return Dependency{Coordinate: c, Scope: scope}, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "groupId":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				b.groupID, b.haveGroupID = s, true
			case "artifactId":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				b.artifactID, b.haveArtifactID = s, true
			case "version":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				b.version = s
			case "type":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				b.extension = s
			case "classifier":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				b.classifier = s
			case "scope":
				s, err := characterData(dec)
				if err != nil {
					return Dependency{}, err
				}
				scope = s
			default:
				// exclusions, optional, and similar are ignored, subtree and
				// all: an <exclusions> block's own nested groupId/artifactId
				// must not reach the cases above and overwrite this
				// dependency's own coordinate fields.
				if err := skipElement(dec); err != nil {
					return Dependency{}, err
				}
			}
		}
	}
}

func parseDependencies(dec *xml.Decoder) ([]Dependency, error) {
	var deps []Dependency
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errorf("xml decode error in dependencies: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "dependencies" {
				return deps, nil
			}
		case xml.StartElement:
			if t.Name.Local == "dependency" {
				d, err := parseDependency(dec)
				if err != nil {
					return nil, err
				}
				deps = append(deps, d)
			}
		}
	}
}

func parseDependencyManagement(dec *xml.Decoder) ([]Dependency, error) {
	var deps []Dependency
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errorf("xml decode error in dependencyManagement: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "dependencyManagement" {
				return deps, nil
			}
		case xml.StartElement:
			if t.Name.Local == "dependencies" {
				d, err := parseDependencies(dec)
				if err != nil {
					return nil, err
				}
				deps = d
			}
		}
	}
}

func parseProperties(dec *xml.Decoder) (map[string]string, error) {
	props := map[string]string{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errorf("xml decode error in properties: %s", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "properties" {
				return props, nil
			}
		case xml.StartElement:
			s, err := characterData(dec)
			if err != nil {
				return nil, err
			}
			props[t.Name.Local] = s
		}
	}
}

// seedWellKnownProperties inserts project.groupId/artifactId/version into
// properties if those keys aren't already present, matching a regular POM
// processor's implicit self-reference properties.
func seedWellKnownProperties(properties map[string]string, self coordinate.Coordinate) {
	insertIfAbsent(properties, "project.groupId", self.GroupID())
	insertIfAbsent(properties, "project.artifactId", self.ArtifactID())
	if self.Version != "" {
		insertIfAbsent(properties, "project.version", self.Version)
	}
}

func insertIfAbsent(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// characterData reads the character data immediately following a
// StartElement up to its matching EndElement, trimming surrounding
// whitespace and tolerating nested elements within what's expected to be a
// leaf.
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

// skipElement consumes tokens up to and including the EndElement matching
// the StartElement just read, discarding everything in between regardless
// of how deeply it's nested.
func skipElement(dec *xml.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return errorf("xml decode error skipping element: %s", err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// Substitute replaces every literal occurrence of ${name} in s with
// properties[name]. Substitution is non-recursive: if the replacement value
// itself contains ${...}, it is left as-is. A ${name} whose name has no
// entry in properties is left in place.
func Substitute(s string, properties map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			out.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			out.WriteString(s)
			break
		}
		end += start
		name := s[start+2 : end]
		out.WriteString(s[:start])
		if v, ok := properties[name]; ok {
			out.WriteString(v)
		} else {
			out.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	return out.String()
}

// SubstituteCoordinate applies Substitute to a coordinate's groupId,
// artifactId, version, extension, and classifier fields.
func SubstituteCoordinate(c coordinate.Coordinate, properties map[string]string) coordinate.Coordinate {
	out := coordinate.New(
		Substitute(c.GroupID(), properties),
		Substitute(c.ArtifactID(), properties),
		Substitute(c.Version, properties),
	)
	out.Extension = Substitute(c.Extension, properties)
	out.Classifier = Substitute(c.Classifier, properties)
	return out
}
