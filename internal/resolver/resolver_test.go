package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/mvnresolve/internal/coordinate"
	"github.com/please-build/mvnresolve/internal/fetch"
)

func newTestResolver(t *testing.T, mux *http.ServeMux, snapshots bool) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := fetch.NewClient(srv.URL, "mvnresolve-test/1.0")
	require.NoError(t, err)
	return New(client, snapshots), srv
}

func TestDownloadFixedVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/lib/1.2.3/lib-1.2.3.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jar-bytes"))
	})
	r, _ := newTestResolver(t, mux, false)
	dir := t.TempDir()

	c := coordinate.New("org.example", "lib", "1.2.3")
	path, err := r.Download(context.Background(), c, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib-1.2.3.jar"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(data))
}

func TestDownloadReleaseResolution(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/lib/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<metadata><groupId>org.example</groupId><artifactId>lib</artifactId>
			<versioning><release>1.2.3</release><latest>1.2.3</latest></versioning></metadata>`))
	})
	mux.HandleFunc("/org/example/lib/RELEASE/lib-1.2.3.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jar-bytes"))
	})
	r, _ := newTestResolver(t, mux, false)
	dir := t.TempDir()

	c := coordinate.New("org.example", "lib", "RELEASE")
	path, err := r.Download(context.Background(), c, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib-1.2.3.jar"), path)
}

func TestDownloadSnapshotResolution(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/pac4j/pac4j-http/6.1.4-SNAPSHOT/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<metadata><groupId>org.pac4j</groupId><artifactId>pac4j-http</artifactId>
			<versioning>
				<snapshot><timestamp>20250607.033109</timestamp><buildNumber>15</buildNumber></snapshot>
				<snapshotVersions>
					<snapshotVersion><extension>jar</extension><value>6.1.4-20250607.033109-15</value><updated>20250607033109</updated></snapshotVersion>
				</snapshotVersions>
			</versioning></metadata>`))
	})
	mux.HandleFunc("/org/pac4j/pac4j-http/6.1.4-SNAPSHOT/pac4j-http-6.1.4-20250607.033109-15.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jar-bytes"))
	})
	r, _ := newTestResolver(t, mux, true)
	dir := t.TempDir()

	c := coordinate.New("org.pac4j", "pac4j-http", "6.1.4-SNAPSHOT")
	path, err := r.Download(context.Background(), c, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pac4j-http-6.1.4-20250607.033109-15.jar"), path)
}

func TestDownloadSnapshotNotAllowed(t *testing.T) {
	mux := http.NewServeMux()
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.pac4j", "pac4j-http", "6.1.4-SNAPSHOT")
	_, err := r.Download(context.Background(), c, t.TempDir())
	var target *SnapshotNotAllowedError
	require.True(t, errors.As(err, &target), "expected SnapshotNotAllowedError, got %T: %v", err, err)
}

func TestDownloadMetaUnresolved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/lib/maven-metadata.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<metadata><groupId>org.example</groupId><artifactId>lib</artifactId><versioning></versioning></metadata>`))
	})
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.example", "lib", "RELEASE")
	_, err := r.Download(context.Background(), c, t.TempDir())
	var target *MetaUnresolvedError
	require.True(t, errors.As(err, &target), "expected MetaUnresolvedError, got %T: %v", err, err)
}

func TestDownloadHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/lib/1.0/lib-1.0.jar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.example", "lib", "1.0")
	_, err := r.Download(context.Background(), c, t.TempDir())
	var target *HTTPError
	require.True(t, errors.As(err, &target), "expected HTTPError, got %T: %v", err, err)
}

func TestCollectDependenciesWithBOM(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/app/1.0/app-1.0.pom", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<project>
			<groupId>org.example</groupId><artifactId>app</artifactId><version>1.0</version>
			<dependencyManagement>
				<dependencies>
					<dependency><groupId>org.junit</groupId><artifactId>junit-bom</artifactId><version>5.11.0</version><type>pom</type><scope>import</scope></dependency>
				</dependencies>
			</dependencyManagement>
			<dependencies>
				<dependency><groupId>x</groupId><artifactId>y</artifactId></dependency>
				<dependency><groupId>x</groupId><artifactId>z</artifactId><version>1.0</version></dependency>
			</dependencies>
		</project>`))
	})
	mux.HandleFunc("/org/junit/junit-bom/5.11.0/junit-bom-5.11.0.pom", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<project>
			<groupId>org.junit</groupId><artifactId>junit-bom</artifactId><version>5.11.0</version>
			<dependencyManagement>
				<dependencies>
					<dependency><groupId>x</groupId><artifactId>y</artifactId><version>9.9.9</version></dependency>
				</dependencies>
			</dependencyManagement>
		</project>`))
	})
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.example", "app", "1.0")
	deps, err := r.CollectDependencies(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "x:y", deps[0].ManagementKey())
	assert.Equal(t, "9.9.9", deps[0].Version, "expected x:y to resolve via BOM to 9.9.9")
	assert.Equal(t, "x:z", deps[1].ManagementKey())
	assert.Equal(t, "1.0", deps[1].Version, "expected x:z with explicit version")
}

func TestCollectDependenciesPropertySubstitution(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/app/1.2.3/app-1.2.3.pom", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<project>
			<groupId>org.example</groupId><artifactId>app</artifactId><version>1.2.3</version>
			<dependencies>
				<dependency><groupId>com.example</groupId><artifactId>example-lib</artifactId><version>${project.version}</version></dependency>
			</dependencies>
		</project>`))
	})
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.example", "app", "1.2.3")
	deps, err := r.CollectDependencies(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "1.2.3", deps[0].Version, "expected substituted version")
}

func TestParentWalkTerminatesSilentlyOnFetchFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/org/example/child/1.0/child-1.0.pom", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<project>
			<parent><groupId>org.example</groupId><artifactId>missing-parent</artifactId><version>1.0</version></parent>
			<groupId>org.example</groupId><artifactId>child</artifactId><version>1.0</version>
			<dependencies><dependency><groupId>x</groupId><artifactId>y</artifactId><version>1.0</version></dependency></dependencies>
		</project>`))
	})
	// No handler registered for missing-parent's pom.xml: the mux 404s it.
	r, _ := newTestResolver(t, mux, false)
	c := coordinate.New("org.example", "child", "1.0")
	deps, err := r.CollectDependencies(context.Background(), c)
	require.NoError(t, err, "expected parent-walk failure to be swallowed")
	require.Len(t, deps, 1, "expected the child's own dependency to still resolve")
}

func TestDownloadAllConcurrentFanOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x/y/1.0/y-1.0.jar", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("y")) })
	mux.HandleFunc("/x/z/1.0/z-1.0.jar", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("z")) })
	r, _ := newTestResolver(t, mux, false)
	dir := t.TempDir()

	deps := []coordinate.Coordinate{
		coordinate.New("x", "y", "1.0"),
		coordinate.New("x", "z", "1.0"),
	}
	paths, err := r.DownloadAll(context.Background(), deps, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "y-1.0.jar", filepath.Base(paths[0]))
	assert.Equal(t, "z-1.0.jar", filepath.Base(paths[1]))
}
