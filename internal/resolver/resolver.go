// Package resolver composes the coordinate, metadata, pom, and fetch
// packages to turn an input coordinate into a downloaded artifact:
// classifying versions, walking parent POMs, importing bills-of-materials,
// and collecting direct dependencies.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/op/go-logging.v1"

	"github.com/please-build/mvnresolve/internal/atomicfile"
	"github.com/please-build/mvnresolve/internal/coordinate"
	"github.com/please-build/mvnresolve/internal/fetch"
	"github.com/please-build/mvnresolve/internal/metadata"
	"github.com/please-build/mvnresolve/internal/pom"
)

var log = logging.MustGetLogger("resolver")

// maxParentDepth bounds the parent walk against a cyclic or pathologically
// long ancestor chain (spec.md §9 suggests 16).
const maxParentDepth = 16

// Resolver resolves coordinates against one repository.
type Resolver struct {
	client    *fetch.Client
	snapshots bool
}

// New constructs a Resolver. snapshots indicates whether the repository is
// configured to serve -SNAPSHOT versions.
func New(client *fetch.Client, snapshots bool) *Resolver {
	return &Resolver{client: client, snapshots: snapshots}
}

// Metadata fetches and parses the top-level maven-metadata.xml for a
// partial (unversioned) coordinate.
func (r *Resolver) Metadata(ctx context.Context, p coordinate.Partial) (*metadata.RepositoryMetadata, error) {
	return r.fetchMetadata(ctx, p.MetadataPath())
}

// ProjectMetadata fetches and parses the pom.xml for a full coordinate.
func (r *Resolver) ProjectMetadata(ctx context.Context, c coordinate.Coordinate) (*pom.Project, error) {
	return r.fetchPOM(ctx, c.PomPath())
}

// Download resolves c's version (classifying snapshot, meta-version, or
// fixed) and streams the resulting artifact into dir, returning the path of
// the written file.
func (r *Resolver) Download(ctx context.Context, c coordinate.Coordinate, dir string) (string, error) {
	if c.Version == "" {
		return "", &ConfigError{Message: fmt.Sprintf("%s has no version to resolve", c.String())}
	}
	switch {
	case c.IsSnapshot():
		if !r.snapshots {
			return "", &SnapshotNotAllowedError{Coordinate: c.String()}
		}
		meta, err := r.fetchMetadata(ctx, c.MetadataPath())
		if err != nil {
			return "", err
		}
		resolvedVersion := c.Version
		if meta.Versioning.Snapshot != nil {
			tag := meta.Versioning.Snapshot.Tag()
			for _, sv := range meta.Versioning.SnapshotVersions {
				if strings.HasSuffix(sv.Value, tag) {
					resolvedVersion = sv.Value
					break
				}
			}
		}
		return r.download0(ctx, coordinate.ResolvedArtifact{Coordinate: c, ResolvedVersion: resolvedVersion}, dir)

	case c.IsMetaVersion():
		meta, err := r.fetchMetadata(ctx, c.Partial().MetadataPath())
		if err != nil {
			return "", err
		}
		resolved := meta.Versioning.Latest
		if c.IsRelease() {
			resolved = meta.Versioning.Release
		}
		if resolved == "" {
			return "", &MetaUnresolvedError{Coordinate: c.String()}
		}
		return r.download0(ctx, coordinate.ResolvedArtifact{Coordinate: c, ResolvedVersion: resolved}, dir)

	default:
		return r.download0(ctx, coordinate.ResolvedArtifact{Coordinate: c, ResolvedVersion: c.Version}, dir)
	}
}

// DownloadAll downloads every dependency in deps into dir concurrently,
// aborting the whole batch on the first failure (spec.md §5 fan-out point
// 3). Results are returned in input order regardless of completion order.
func (r *Resolver) DownloadAll(ctx context.Context, deps []coordinate.Coordinate, dir string) ([]string, error) {
	paths := make([]string, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range deps {
		i, d := i, d
		g.Go(func() error {
			path, err := r.Download(gctx, d, dir)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// CollectDependencies walks c's parent chain, imports its bills-of-materials,
// and returns its direct dependencies with property placeholders expanded
// and management-key lookups applied. One level deep only; no recursion
// into dependencies-of-dependencies (spec.md §4.5, §9).
func (r *Resolver) CollectDependencies(ctx context.Context, c coordinate.Coordinate) ([]coordinate.Coordinate, error) {
	project, err := r.ProjectMetadata(ctx, c)
	if err != nil {
		return nil, err
	}
	parents, err := r.getParents(ctx, project)
	if err != nil {
		return nil, err
	}
	managed, err := r.getBomsFromAll(ctx, project, parents)
	if err != nil {
		return nil, err
	}
	props := effectiveProperties(parents, project)

	var deps []coordinate.Coordinate
	for _, dep := range project.Dependencies {
		resolved := pom.SubstituteCoordinate(dep.Coordinate, props)
		if resolved.Version != "" {
			deps = append(deps, resolved)
			continue
		}
		if managedDep, ok := managed[resolved.ManagementKey()]; ok {
			deps = append(deps, managedDep.Coordinate)
		}
		// Else dropped silently: no management entry covers it.
	}
	return deps, nil
}

// getParents walks the parent chain starting at project's immediate parent,
// returning ancestors nearest-first. A fetch failure at any step terminates
// the walk early without an error (spec.md §4.5): the parent is treated as
// unknown, not as a hard failure. Only a chain exceeding maxParentDepth is
// surfaced as an error, since that's a malformed-repository condition
// rather than an ordinary "no more ancestors" terminus.
func (r *Resolver) getParents(ctx context.Context, project *pom.Project) ([]*pom.Project, error) {
	var parents []*pom.Project
	current := project
	for depth := 0; current.Parent != nil; depth++ {
		if depth >= maxParentDepth {
			return nil, &MalformedPOMError{
				URL: current.Parent.String(),
				Err: fmt.Errorf("parent chain exceeds depth limit of %d", maxParentDepth),
			}
		}
		next, err := r.ProjectMetadata(ctx, *current.Parent)
		if err != nil {
			log.Debug("parent fetch for %s failed, terminating walk: %s", current.Parent, err)
			break
		}
		parents = append(parents, next)
		current = next
	}
	return parents, nil
}

// effectiveProperties folds ancestor properties from the root ancestor down
// to the immediate parent (later entries overwrite earlier), then overlays
// project's own properties on top (spec.md §4.4). parents is ordered
// nearest-first, as returned by getParents, so it's walked back to front.
func effectiveProperties(parents []*pom.Project, project *pom.Project) map[string]string {
	props := map[string]string{}
	for i := len(parents) - 1; i >= 0; i-- {
		for k, v := range parents[i].Properties {
			props[k] = v
		}
	}
	for k, v := range project.Properties {
		props[k] = v
	}
	return props
}

// getBomsFromAll fetches the bill-of-materials imports of project and every
// ancestor in parents, and accumulates them into a mapping keyed by
// management key. Ancestors are processed nearest-first and each
// subsequent ancestor's entries overwrite the previous ones for the same
// key; the project's own BOM imports are applied last and win over all
// ancestors.
func (r *Resolver) getBomsFromAll(ctx context.Context, project *pom.Project, parents []*pom.Project) (map[string]pom.Dependency, error) {
	managed := map[string]pom.Dependency{}
	if len(parents) > 0 {
		results := make([][]pom.Dependency, len(parents))
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range parents {
			i, p := i, p
			g.Go(func() error {
				boms, err := r.getBillOfMaterials(gctx, p)
				if err != nil {
					return err
				}
				results[i] = boms
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, boms := range results {
			for _, d := range boms {
				managed[d.Coordinate.ManagementKey()] = d
			}
		}
	}

	boms, err := r.getBillOfMaterials(ctx, project)
	if err != nil {
		return nil, err
	}
	for _, d := range boms {
		managed[d.Coordinate.ManagementKey()] = d
	}
	return managed, nil
}

// getBillOfMaterials fetches every dependencyManagement entry of project
// that imports a BOM (scope=import, extension=pom), concurrently, and
// returns the union of their own dependencyManagement entries with each
// BOM's own (non-ancestor) property scope applied.
func (r *Resolver) getBillOfMaterials(ctx context.Context, project *pom.Project) ([]pom.Dependency, error) {
	var imports []coordinate.Coordinate
	for _, d := range project.DependencyManagement {
		if d.Scope == "import" && d.Coordinate.ExtensionOrJar() == "pom" {
			imports = append(imports, d.Coordinate)
		}
	}
	if len(imports) == 0 {
		return nil, nil
	}

	results := make([][]pom.Dependency, len(imports))
	g, gctx := errgroup.WithContext(ctx)
	for i, imp := range imports {
		i, imp := i, imp
		g.Go(func() error {
			bomProject, err := r.ProjectMetadata(gctx, imp)
			if err != nil {
				return err
			}
			props := effectiveProperties(nil, bomProject)
			deps := make([]pom.Dependency, len(bomProject.DependencyManagement))
			for j, d := range bomProject.DependencyManagement {
				deps[j] = pom.Dependency{Coordinate: pom.SubstituteCoordinate(d.Coordinate, props), Scope: d.Scope}
			}
			results[i] = deps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []pom.Dependency
	for _, deps := range results {
		all = append(all, deps...)
	}
	return all, nil
}

func (r *Resolver) download0(ctx context.Context, artifact coordinate.ResolvedArtifact, dir string) (string, error) {
	path := artifact.URLPath()
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return "", &TransportError{URL: r.client.URL(path), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{URL: r.client.URL(path), Status: resp.StatusCode}
	}
	log.Notice("downloading %s", r.client.URL(path))
	out, err := atomicfile.WriteFile(resp.Body, dir, artifact.FileName())
	if err != nil {
		return "", &FilesystemError{Path: dir, Err: err}
	}
	return out, nil
}

func (r *Resolver) fetchMetadata(ctx context.Context, path string) (*metadata.RepositoryMetadata, error) {
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return nil, &TransportError{URL: r.client.URL(path), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: r.client.URL(path), Status: resp.StatusCode}
	}
	m, err := metadata.Parse(resp.Body)
	if err != nil {
		return nil, &MalformedMetadataError{URL: r.client.URL(path), Err: err}
	}
	return m, nil
}

func (r *Resolver) fetchPOM(ctx context.Context, path string) (*pom.Project, error) {
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return nil, &TransportError{URL: r.client.URL(path), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: r.client.URL(path), Status: resp.StatusCode}
	}
	p, err := pom.Parse(resp.Body)
	if err != nil {
		return nil, &MalformedPOMError{URL: r.client.URL(path), Err: err}
	}
	return p, nil
}
