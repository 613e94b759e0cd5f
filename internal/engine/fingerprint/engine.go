package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
	"github.com/loomworks/loom/internal/engine/envir"
)

// absentHash stands in for the content hash of something that does not
// exist yet, so dependency digests still change when it appears.
const absentHash = "absent"

// Engine analyzes a graph against the stored fingerprints.
type Engine struct {
	store ports.Store
}

// NewEngine creates an Engine over the metadata store.
func NewEngine(store ports.Store) *Engine {
	return &Engine{store: store}
}

// Pass is the staleness analysis of one run. It carries the current content
// hash of every node and is updated through Commit as builds complete, so
// dependency digests written after a build reflect the rebuilt inputs.
type Pass struct {
	store   ports.Store
	graph   *domain.Graph
	plan    *domain.Plan
	trigger domain.Trigger

	mu       sync.Mutex
	content  map[domain.InternedString]string
	fresh    map[domain.InternedString]domain.Metadata
	outdated map[domain.InternedString]struct{}
	scanned  map[domain.InternedString]struct{}
}

// Analyze walks the graph in execution order and computes, in a single
// pass, the fresh fingerprint of every node and the set of outdated
// targets. Import and file metadata is persisted immediately; target
// metadata is only persisted by Commit after a successful build.
//
// Outdatedness propagates: a target whose dependency target is outdated is
// itself outdated under the any and depends triggers, regardless of its
// own stored fingerprint.
func (e *Engine) Analyze(g *domain.Graph, plan *domain.Plan, ws *envir.Workspace, trigger domain.Trigger) (*Pass, error) {
	p := &Pass{
		store:    e.store,
		graph:    g,
		plan:     plan,
		trigger:  trigger,
		content:  make(map[domain.InternedString]string, g.Len()),
		fresh:    make(map[domain.InternedString]domain.Metadata, g.Len()),
		outdated: make(map[domain.InternedString]struct{}),
		scanned:  make(map[domain.InternedString]struct{}),
	}

	for node := range g.Walk() {
		var err error
		switch node.Kind {
		case domain.KindFile:
			err = p.analyzeFile(node)
		case domain.KindImport:
			err = p.analyzeImport(node, ws)
		case domain.KindTarget:
			err = p.analyzeTarget(node)
		}
		if err != nil {
			return nil, zerr.With(err, "node", node.Name.String())
		}
	}
	return p, nil
}

func (p *Pass) analyzeFile(node domain.Node) error {
	path, _ := domain.FilePath(node.Name)
	hash, missing, err := HashFile(path)
	if err != nil {
		return err
	}

	meta := domain.Metadata{
		Name:       node.Name,
		Kind:       domain.KindFile,
		OutputHash: hash,
		Missing:    missing,
		Timestamp:  time.Now(),
	}
	p.content[node.Name] = contentOrAbsent(hash, missing)
	p.fresh[node.Name] = meta
	p.scanned[node.Name] = struct{}{}
	return p.writeMeta(meta)
}

func (p *Pass) analyzeImport(node domain.Node, ws *envir.Workspace) error {
	name := node.Name.String()
	meta := domain.Metadata{
		Name:      node.Name,
		Kind:      domain.KindImport,
		Timestamp: time.Now(),
	}

	if def, ok := p.plan.Funcs[name]; ok {
		meta.CommandHash = HashString(def.Body)
		meta.DepHash = p.depDigest(node)
		p.content[node.Name] = HashString(meta.CommandHash + "\x00" + meta.DepHash)
	} else {
		v, err := ws.Get(name)
		switch {
		case errors.Is(err, domain.ErrMissingDependency):
			meta.Missing = true
			p.content[node.Name] = absentHash
		case err != nil:
			return err
		default:
			data, err := envir.MarshalValue(v)
			if err != nil {
				return err
			}
			meta.CommandHash = HashBytes(data)
			p.content[node.Name] = meta.CommandHash
		}
	}

	p.fresh[node.Name] = meta
	p.scanned[node.Name] = struct{}{}
	return p.writeMeta(meta)
}

func (p *Pass) analyzeTarget(node domain.Node) error {
	target, ok := p.plan.Target(node.Name)
	if !ok {
		return zerr.With(domain.ErrNodeNotFound, "kind", string(domain.KindTarget))
	}

	meta := domain.Metadata{
		Name:        node.Name,
		Kind:        domain.KindTarget,
		CommandHash: HashString(target.Command),
		DepHash:     p.depDigest(node),
		Timestamp:   time.Now(),
	}

	if target.File {
		hash, missing, err := hashOutFiles(node.OutFiles)
		if err != nil {
			return err
		}
		meta.OutputHash = hash
		meta.Missing = missing
	} else {
		data, err := p.store.Get(node.Name.String(), ports.NamespaceObjects)
		if err != nil {
			return zerr.Wrap(err, "failed to read cached object")
		}
		if data == nil {
			meta.Missing = true
		} else {
			meta.OutputHash = HashBytes(data)
		}
	}

	stored, err := p.readMeta(node.Name)
	if err != nil {
		return err
	}

	trig := p.triggerFor(target)
	if IsOutdated(stored, meta, trig, p.depsOutdated(node)) {
		p.outdated[node.Name] = struct{}{}
	}
	p.content[node.Name] = contentOrAbsent(meta.OutputHash, meta.Missing)
	p.fresh[node.Name] = meta
	return nil
}

// IsOutdated compares a stored fingerprint against the fresh one under the
// trigger policy. A nil stored record means the node was never built.
// depOutdated reports that a dependency target will be rebuilt this run; it
// only forces a rebuild under the any and depends triggers.
func IsOutdated(stored *domain.Metadata, fresh domain.Metadata, trigger domain.Trigger, depOutdated bool) bool {
	if trigger == domain.TriggerAlways {
		return true
	}
	if stored == nil {
		return true
	}
	switch trigger {
	case domain.TriggerCommand:
		return stored.CommandHash != fresh.CommandHash
	case domain.TriggerDepends:
		return depOutdated || stored.DepHash != fresh.DepHash
	case domain.TriggerFile:
		return fresh.Missing || stored.OutputHash != fresh.OutputHash
	default:
		return depOutdated ||
			fresh.Missing ||
			stored.CommandHash != fresh.CommandHash ||
			stored.DepHash != fresh.DepHash ||
			stored.OutputHash != fresh.OutputHash
	}
}

// Commit recomputes and persists the fingerprint of a target after its
// build succeeded. The dependency digest is rebuilt from the current
// content map, which upstream Commits have already updated, so a second
// run over unchanged inputs finds every target current.
func (p *Pass) Commit(node domain.Node, output []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, ok := p.plan.Target(node.Name)
	if !ok {
		return zerr.With(domain.ErrNodeNotFound, "kind", string(domain.KindTarget))
	}

	meta := domain.Metadata{
		Name:        node.Name,
		Kind:        domain.KindTarget,
		CommandHash: HashString(target.Command),
		DepHash:     p.depDigest(node),
		Timestamp:   time.Now(),
	}

	if target.File {
		hash, missing, err := hashOutFiles(node.OutFiles)
		if err != nil {
			return err
		}
		if missing {
			return zerr.With(zerr.New("declared output file missing after build"),
				"target_name", node.Name.String(),
			)
		}
		meta.OutputHash = hash
	} else {
		meta.OutputHash = HashBytes(output)
	}

	p.content[node.Name] = meta.OutputHash
	p.fresh[node.Name] = meta
	delete(p.outdated, node.Name)
	return p.writeMeta(meta)
}

// Outdated returns the names of outdated targets, sorted.
func (p *Pass) Outdated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.outdated))
	for name := range p.outdated {
		out = append(out, name.String())
	}
	slices.Sort(out)
	return out
}

// OutdatedSet returns a copy of the outdated target set.
func (p *Pass) OutdatedSet() map[domain.InternedString]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[domain.InternedString]struct{}, len(p.outdated))
	for name := range p.outdated {
		out[name] = struct{}{}
	}
	return out
}

// ScanSet returns a copy of the set of rehashed import and file nodes.
func (p *Pass) ScanSet() map[domain.InternedString]struct{} {
	out := make(map[domain.InternedString]struct{}, len(p.scanned))
	for name := range p.scanned {
		out[name] = struct{}{}
	}
	return out
}

// Fresh returns the fingerprint computed for the node this pass.
func (p *Pass) Fresh(name domain.InternedString) (domain.Metadata, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	meta, ok := p.fresh[name]
	return meta, ok
}

// triggerFor resolves the effective trigger: per-target override, then the
// run-level policy the pass was analyzed with.
func (p *Pass) triggerFor(t domain.Target) domain.Trigger {
	if t.Trigger != "" {
		return t.Trigger
	}
	if p.trigger != "" {
		return p.trigger
	}
	return domain.TriggerAny
}

// depDigest digests the node's direct dependencies from the content map.
// Callers during the build phase must hold p.mu; Analyze runs single
// threaded before the scheduler starts.
func (p *Pass) depDigest(node domain.Node) string {
	if len(node.Deps) == 0 {
		return ""
	}
	deps := make(map[string]string, len(node.Deps))
	for _, dep := range node.Deps {
		hash, ok := p.content[dep]
		if !ok {
			hash = absentHash
		}
		deps[dep.String()] = hash
	}
	return DepDigest(deps)
}

func (p *Pass) depsOutdated(node domain.Node) bool {
	for _, dep := range node.Deps {
		if _, ok := p.outdated[dep]; ok {
			return true
		}
	}
	return false
}

func (p *Pass) readMeta(name domain.InternedString) (*domain.Metadata, error) {
	data, err := p.store.Get(name.String(), ports.NamespaceMeta)
	if err != nil {
		return nil, errors.Join(domain.ErrCacheFailure, zerr.Wrap(err, "failed to read fingerprint"))
	}
	if data == nil {
		return nil, nil
	}
	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, zerr.Wrap(err, "failed to unmarshal fingerprint")
	}
	return &meta, nil
}

func (p *Pass) writeMeta(meta domain.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal fingerprint")
	}
	if err := p.store.Set(meta.Name.String(), ports.NamespaceMeta, data); err != nil {
		return errors.Join(domain.ErrCacheFailure, zerr.Wrap(err, "failed to write fingerprint"))
	}
	return nil
}

func contentOrAbsent(hash string, missing bool) string {
	if missing {
		return absentHash
	}
	return hash
}

// hashOutFiles combines the content hashes of the declared output files.
// Any absent file marks the whole set missing.
func hashOutFiles(files []string) (hash string, missing bool, err error) {
	h := xxhash.New()
	for _, path := range files {
		fh, absent, err := HashFile(path)
		if err != nil {
			return "", false, err
		}
		if absent {
			missing = true
			fh = absentHash
		}
		h.WriteString(path)
		h.Write([]byte{0})
		h.WriteString(fh)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64()), missing, nil
}
