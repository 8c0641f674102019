// Package main implements mvnresolve, a command-line tool that resolves
// Maven coordinates against a remote repository: listing versions,
// downloading a single artifact, or downloading an artifact together with
// its direct dependencies.
//
// Unlike please_maven, the tool this package is descended from, mvnresolve
// does not attempt cross-package version mediation across a whole
// dependency graph; it resolves one coordinate's own direct dependencies and
// leaves closure and conflict resolution to its caller.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/op/go-logging.v1"

	"github.com/please-build/mvnresolve/internal/atomicfile"
	cli "github.com/please-build/mvnresolve/internal/cliutil"
	"github.com/please-build/mvnresolve/internal/coordinate"
	"github.com/please-build/mvnresolve/internal/fetch"
	"github.com/please-build/mvnresolve/internal/resolver"
)

const (
	appName    = "mvnresolve"
	appVersion = "1.0.0"

	centralReleaseURL  = "https://repo1.maven.org/maven2/"
	centralSnapshotURL = "https://central.sonatype.com/repository/maven-snapshots/"
)

var log = logging.MustGetLogger("mvnresolve")

var opts = struct {
	Usage      string
	Verbosity  cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output: critical, error, warning, notice, info or debug"`
	Repository cli.URL       `long:"repository" env:"MAVEN_REPOSITORY" default:"central" description:"Repository to resolve against: central, central-snapshots, or a full URL"`
	Username   string        `long:"username" env:"MAVEN_USERNAME" description:"Username for HTTP Basic authentication"`
	Password   string        `long:"password" env:"MAVEN_PASSWORD" description:"Password for HTTP Basic authentication"`
	Token      string        `long:"token" env:"MAVEN_TOKEN" description:"Bearer token for authentication; ignored if username and password are both set"`

	Versions struct {
		JSON   bool   `long:"json" description:"Print the full metadata record as pretty-printed JSON"`
		Select string `long:"select" choice:"latest" choice:"release" choice:"versions" description:"Print just one computed value instead of the full record"`
		Size   int    `long:"size" default:"10" description:"With --select versions, the number of most recent versions to print"`
		Args   struct {
			Coordinate string `positional-arg-name:"groupId:artifactId" required:"yes"`
		} `positional-args:"yes" required:"yes"`
	} `command:"versions" description:"List or inspect the versions a repository has published for an artifact"`

	ResolveFile struct {
		Args struct {
			Coordinate string `positional-arg-name:"coordinate" required:"yes"`
			Dir        string `positional-arg-name:"dir" required:"yes"`
		} `positional-args:"yes" required:"yes"`
	} `command:"resolve-file" description:"Download a single artifact into an existing directory"`

	ResolveProject struct {
		IncludeDependencies bool `long:"include-dependencies" description:"Also download the artifact's direct dependencies"`
		Flatten             bool `long:"flatten" description:"Write dependencies into dir itself instead of dir/lib"`
		Args                struct {
			Coordinate string `positional-arg-name:"coordinate" required:"yes"`
			Dir        string `positional-arg-name:"dir" required:"yes"`
		} `positional-args:"yes" required:"yes"`
	} `command:"resolve-project" description:"Download an artifact and optionally its direct dependencies"`
}{
	Usage: `
mvnresolve resolves Maven coordinates against a remote repository.

It distinguishes three things you might want to do with a coordinate:
list what versions a repository has published for it (versions), download a
single file (resolve-file), or download a file together with its direct
dependencies (resolve-project).

Example usage:

  mvnresolve versions --select release org.example:example-lib
  mvnresolve resolve-file org.example:example-lib:1.2.3 .
  mvnresolve resolve-project --include-dependencies org.example:app:1.0 .
`,
}

func main() {
	parser := cli.ParseFlagsOrDie(appName, appVersion, &opts)
	cli.InitLogging(opts.Verbosity)

	repoURL, snapshots := classifyRepository(string(opts.Repository))
	client, err := fetch.NewClient(repoURL, appName+"/"+appVersion, authOptions()...)
	if err != nil {
		die(&resolver.InvalidURLError{URL: repoURL, Err: err})
	}
	r := resolver.New(client, snapshots)
	ctx := context.Background()

	if parser.Command.Active == nil {
		die(&resolver.ConfigError{Message: "no subcommand given; expected one of versions, resolve-file, resolve-project"})
	}

	var cmdErr error
	switch parser.Command.Active.Name {
	case "versions":
		cmdErr = runVersions(ctx, r)
	case "resolve-file":
		cmdErr = runResolveFile(ctx, r)
	case "resolve-project":
		cmdErr = runResolveProject(ctx, r)
	}
	if cmdErr != nil {
		die(cmdErr)
	}
}

// authOptions builds the fetch.Client options implied by MAVEN_USERNAME,
// MAVEN_PASSWORD and MAVEN_TOKEN; fetch.Client itself prefers Basic auth
// over a bearer token when both are configured.
func authOptions() []fetch.Option {
	var fopts []fetch.Option
	if opts.Username != "" && opts.Password != "" {
		fopts = append(fopts, fetch.WithBasicAuth(opts.Username, opts.Password))
	}
	if opts.Token != "" {
		fopts = append(fopts, fetch.WithBearerToken(opts.Token))
	}
	return fopts
}

// classifyRepository maps the MAVEN_REPOSITORY value onto a base URL and
// whether the repository serves snapshots (spec.md §6).
func classifyRepository(repo string) (baseURL string, snapshots bool) {
	switch repo {
	case "", "central":
		return centralReleaseURL, false
	case "central-snapshots":
		return centralSnapshotURL, true
	default:
		return repo, true
	}
}

func runVersions(ctx context.Context, r *resolver.Resolver) error {
	if opts.Versions.JSON && opts.Versions.Select != "" {
		return &resolver.ConfigError{Message: "--json and --select are mutually exclusive"}
	}
	p, err := coordinate.ParsePartial(opts.Versions.Args.Coordinate)
	if err != nil {
		return &resolver.InvalidCoordinateError{Input: opts.Versions.Args.Coordinate, Err: err}
	}
	meta, err := r.Metadata(ctx, p)
	if err != nil {
		return err
	}

	switch {
	case opts.Versions.JSON:
		b, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	case opts.Versions.Select == "latest":
		fmt.Println(meta.Versioning.Latest)
	case opts.Versions.Select == "release":
		fmt.Println(meta.Versioning.Release)
	case opts.Versions.Select == "versions":
		for _, v := range lastN(meta.Versioning.Versions, opts.Versions.Size) {
			fmt.Println(v)
		}
	default:
		fmt.Printf("%+v\n", meta)
	}
	return nil
}

// lastN returns the last n elements of versions (oldest-first, as published
// in maven-metadata.xml), reversed to newest-first.
func lastN(versions []string, n int) []string {
	if n <= 0 || n > len(versions) {
		n = len(versions)
	}
	tail := versions[len(versions)-n:]
	out := make([]string, len(tail))
	for i, v := range tail {
		out[len(tail)-1-i] = v
	}
	return out
}

func runResolveFile(ctx context.Context, r *resolver.Resolver) error {
	c, err := parseDownloadCoordinate(opts.ResolveFile.Args.Coordinate)
	if err != nil {
		return err
	}
	dir := opts.ResolveFile.Args.Dir
	if !atomicfile.IsDirectory(dir) {
		return &resolver.FilesystemError{Path: dir, Err: fmt.Errorf("not an existing directory")}
	}
	path, err := r.Download(ctx, c, dir)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runResolveProject(ctx context.Context, r *resolver.Resolver) error {
	c, err := parseDownloadCoordinate(opts.ResolveProject.Args.Coordinate)
	if err != nil {
		return err
	}
	dir := opts.ResolveProject.Args.Dir
	if !atomicfile.IsDirectory(dir) {
		return &resolver.FilesystemError{Path: dir, Err: fmt.Errorf("not an existing directory")}
	}
	path, err := r.Download(ctx, c, dir)
	if err != nil {
		return err
	}

	if opts.ResolveProject.IncludeDependencies {
		depDir := dir
		if !opts.ResolveProject.Flatten {
			depDir = filepath.Join(dir, "lib")
			if err := atomicfile.EnsureDir(depDir); err != nil {
				return &resolver.FilesystemError{Path: depDir, Err: err}
			}
		}
		deps, err := r.CollectDependencies(ctx, c)
		if err != nil {
			return err
		}
		paths, err := r.DownloadAll(ctx, deps, depDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(os.Stderr, p)
		}
	}

	fmt.Println(path)
	return nil
}

// parseDownloadCoordinate parses a full coordinate for resolve-file/
// resolve-project and rejects POM-packaging coordinates, which name a
// project descriptor rather than a downloadable artifact (spec.md §6).
func parseDownloadCoordinate(input string) (coordinate.Coordinate, error) {
	c, err := coordinate.Parse(input)
	if err != nil {
		return coordinate.Coordinate{}, &resolver.InvalidCoordinateError{Input: input, Err: err}
	}
	if c.ExtensionOrJar() == "pom" {
		return coordinate.Coordinate{}, &resolver.ConfigError{Message: fmt.Sprintf("%s is a pom-packaging coordinate; resolve-file/resolve-project download artifacts, not descriptors", input)}
	}
	return c, nil
}

func die(err error) {
	log.Debug("%+v", err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
