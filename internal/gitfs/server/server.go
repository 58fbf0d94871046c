// Package server provides a mock Git remote for tests (spec §4.7):
// an in-process transport.Transport backed by go-git's own server
// implementation, registered under a private URL scheme so clone,
// push and pull exercise real smart-protocol negotiation without a
// network socket or an external git binary.
package server

import (
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	gitserver "github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Scheme is the URL scheme mock remotes are addressed under, e.g.
// "vfscoremock://origin.git".
const Scheme = "vfscoremock"

var (
	registerOnce sync.Once
	mu           sync.Mutex
	loader       = gitserver.MapLoader{}
)

func ensureRegistered() {
	registerOnce.Do(func() {
		client.InstallProtocol(Scheme, gitserver.NewServer(loader))
	})
}

// Repo is one bare repository served by the mock remote.
type Repo struct {
	name string
	sto  storage.Storer
}

// NewRepo creates and registers a fresh, empty bare repository under
// name (without scheme), addressable as "<Scheme>://<name>".
func NewRepo(name string) *Repo {
	ensureRegistered()
	sto := memory.NewStorage()

	mu.Lock()
	loader[endpointKey(name)] = sto
	mu.Unlock()

	return &Repo{name: name, sto: sto}
}

// URL returns the clone URL for this repository.
func (r *Repo) URL() string {
	return fmt.Sprintf("%s://%s", Scheme, r.name)
}

// Storer exposes the bare repository's object database, for tests
// that seed history directly with go-git rather than through a
// GitFs mount.
func (r *Repo) Storer() storage.Storer {
	return r.sto
}

func endpointKey(name string) string {
	ep, err := transport.NewEndpoint(fmt.Sprintf("%s://%s", Scheme, name))
	if err != nil {
		return name
	}
	return ep.String()
}
