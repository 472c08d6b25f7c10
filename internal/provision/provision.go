// File: internal/provision/provision.go
// Brief: Host provisioning (accounts, data directories, config files) per service.

// Package provision prepares the host for each service that declares a
// provisioning profile. Every mutating step runs through the elevated
// runner; existence checks run unprivileged. Steps are applied in a fixed
// order and re-running on a provisioned host only repeats the ownership and
// permission resets.
//
// Two concurrent runs against one host can race on account creation and
// directory ownership. Nothing here locks against that.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/example/stackup/internal/descriptor"
	"github.com/example/stackup/internal/graph"
	"github.com/example/stackup/internal/runner"
	"github.com/go-logr/logr"
)

const (
	DefaultBaseDir     = "/data"
	DefaultShell       = "/bin/false"
	DefaultDescription = "System service"
	DefaultDirMode     = fs.FileMode(0o755)
)

type Options struct {
	// SourceRoot holds one directory per service with its config sources.
	SourceRoot         string
	BaseDir            string
	DirMode            fs.FileMode
	Shell              string
	DefaultDescription string
}

func (o Options) withDefaults() Options {
	if o.BaseDir == "" {
		o.BaseDir = DefaultBaseDir
	}
	if o.DirMode == 0 {
		o.DirMode = DefaultDirMode
	}
	if o.Shell == "" {
		o.Shell = DefaultShell
	}
	if o.DefaultDescription == "" {
		o.DefaultDescription = DefaultDescription
	}
	return o
}

// Step names used in StepError.
const (
	StepBaseDir    = "base-dir"
	StepGroup      = "group"
	StepUser       = "user"
	StepDataDir    = "data-dir"
	StepSpecialDir = "special-dir"
	StepConfig     = "config-file"
)

// StepError names the service, step and target of a failed provisioning
// command. Steps already applied are left in place.
type StepError struct {
	Service string
	Step    string
	Target  string
	Err     error
}

func (e *StepError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("provision %s %s: %v", e.Step, e.Target, e.Err)
	}
	return fmt.Sprintf("provision %s: %s %s: %v", e.Service, e.Step, e.Target, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Report summarizes one provisioning run.
type Report struct {
	Provisioned   []string
	Skipped       []string
	GroupsCreated []string
	UsersCreated  []string
	DataDirs      []string
	FilesCopied   []string
	FilesMissing  []string
}

type Provisioner struct {
	run  runner.Runner
	log  logr.Logger
	opts Options
	stat func(string) (fs.FileInfo, error)
}

func New(r runner.Runner, log logr.Logger, opts Options) *Provisioner {
	return &Provisioner{
		run:  r,
		log:  log,
		opts: opts.withDefaults(),
		stat: os.Stat,
	}
}

// Run provisions every service in g that has a profile, in discovery order,
// stopping at the first failed step.
func (p *Provisioner) Run(ctx context.Context, g *graph.Graph) (*Report, error) {
	rep := &Report{}
	var targets []*descriptor.Descriptor
	for _, name := range g.Names() {
		d, _ := g.Descriptor(name)
		if d == nil || d.Profile == nil {
			rep.Skipped = append(rep.Skipped, name)
			p.log.V(1).Info("no provisioning profile", "service", name)
			continue
		}
		targets = append(targets, d)
	}
	if len(targets) == 0 {
		return rep, nil
	}
	if err := p.mkdir(ctx, p.opts.BaseDir); err != nil {
		return rep, &StepError{Step: StepBaseDir, Target: p.opts.BaseDir, Err: err}
	}
	for _, d := range targets {
		if err := p.provision(ctx, d, rep); err != nil {
			return rep, err
		}
		rep.Provisioned = append(rep.Provisioned, d.Name)
	}
	return rep, nil
}

func (p *Provisioner) provision(ctx context.Context, d *descriptor.Descriptor, rep *Report) error {
	prof := d.Profile
	acct := prof.Account
	log := p.log.WithValues("service", d.Name)
	fail := func(step, target string, err error) error {
		return &StepError{Service: d.Name, Step: step, Target: target, Err: err}
	}

	created, err := p.ensureGroup(ctx, acct)
	if err != nil {
		return fail(StepGroup, acct.Groupname, err)
	}
	if created {
		rep.GroupsCreated = append(rep.GroupsCreated, acct.Groupname)
		log.Info("group created", "group", acct.Groupname, "gid", acct.GID)
	}

	description := d.Description
	if description == "" {
		description = p.opts.DefaultDescription
	}
	created, err = p.ensureUser(ctx, acct, description)
	if err != nil {
		return fail(StepUser, acct.Username, err)
	}
	if created {
		rep.UsersCreated = append(rep.UsersCreated, acct.Username)
		log.Info("user created", "user", acct.Username, "uid", acct.UID)
	}

	if prof.DataDir == "" {
		log.V(1).Info("no data directory declared; skipping directories and config files")
		return nil
	}
	dataDir := prof.DataDir
	if err := p.mkdir(ctx, dataDir); err != nil {
		return fail(StepDataDir, dataDir, err)
	}
	if err := p.fixTree(ctx, dataDir, acct); err != nil {
		return fail(StepDataDir, dataDir, err)
	}
	rep.DataDirs = append(rep.DataDirs, dataDir)
	log.Info("data directory ready", "path", dataDir, "owner", owner(acct))

	if len(prof.SpecialDirs) > 0 {
		for _, sub := range prof.SpecialDirs {
			path := filepath.Join(dataDir, sub)
			if err := p.mkdir(ctx, path); err != nil {
				return fail(StepSpecialDir, path, err)
			}
			log.V(1).Info("special directory created", "path", path)
		}
		// mkdir leaves new entries owned by the elevated user.
		if err := p.fixTree(ctx, dataDir, acct); err != nil {
			return fail(StepSpecialDir, dataDir, err)
		}
	}

	for _, name := range prof.ConfigFiles {
		src := filepath.Join(p.opts.SourceRoot, d.Name, name)
		dst := filepath.Join(dataDir, DestinationName(name))
		if _, err := p.stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				rep.FilesMissing = append(rep.FilesMissing, src)
				log.Info("config file source not found; skipping", "path", src)
				// The recursive chmod above also hit any copy left by an
				// earlier run.
				if _, err := p.stat(dst); err == nil {
					if err := p.privileged(ctx, "chmod", modeArg(ModeFor(dst)), dst); err != nil {
						return fail(StepConfig, dst, err)
					}
					log.V(1).Info("existing config file mode restored", "path", dst)
				}
				continue
			}
			return fail(StepConfig, src, err)
		}
		if err := p.installFile(ctx, src, dst, dataDir, acct); err != nil {
			return fail(StepConfig, dst, err)
		}
		rep.FilesCopied = append(rep.FilesCopied, dst)
		log.Info("config file installed", "path", dst, "mode", fmt.Sprintf("%o", ModeFor(dst)))
	}
	return nil
}

func (p *Provisioner) ensureGroup(ctx context.Context, acct descriptor.Account) (bool, error) {
	exists, err := p.query(ctx, "getent", "group", acct.Groupname)
	if err != nil || exists {
		return false, err
	}
	_, err = p.run.Run(ctx, runner.Command{
		Name:       "groupadd",
		Args:       []string{"-g", strconv.FormatUint(uint64(acct.GID), 10), acct.Groupname},
		Privileged: true,
	})
	return err == nil, err
}

func (p *Provisioner) ensureUser(ctx context.Context, acct descriptor.Account, description string) (bool, error) {
	exists, err := p.query(ctx, "id", acct.Username)
	if err != nil || exists {
		return false, err
	}
	_, err = p.run.Run(ctx, runner.Command{
		Name: "useradd",
		Args: []string{
			"-r",
			"-u", strconv.FormatUint(uint64(acct.UID), 10),
			"-g", acct.Groupname,
			"-c", description,
			"-s", p.opts.Shell,
			acct.Username,
		},
		Privileged: true,
	})
	return err == nil, err
}

// query runs an unprivileged lookup. A non-zero exit means "absent"; a
// command that cannot run at all is an error.
func (p *Provisioner) query(ctx context.Context, name string, args ...string) (bool, error) {
	_, err := p.run.Run(ctx, runner.Command{Name: name, Args: args})
	if err == nil {
		return true, nil
	}
	if runner.IsExit(err) {
		return false, nil
	}
	return false, err
}

func (p *Provisioner) installFile(ctx context.Context, src, dst, dataDir string, acct descriptor.Account) error {
	if parent := filepath.Dir(dst); parent != filepath.Clean(dataDir) {
		if err := p.mkdir(ctx, parent); err != nil {
			return err
		}
		if err := p.privileged(ctx, "chown", owner(acct), parent); err != nil {
			return err
		}
	}
	if err := p.privileged(ctx, "cp", src, dst); err != nil {
		return err
	}
	if err := p.privileged(ctx, "chown", owner(acct), dst); err != nil {
		return err
	}
	return p.privileged(ctx, "chmod", modeArg(ModeFor(dst)), dst)
}

// fixTree resets ownership and mode recursively.
func (p *Provisioner) fixTree(ctx context.Context, dir string, acct descriptor.Account) error {
	if err := p.privileged(ctx, "chown", "-R", owner(acct), dir); err != nil {
		return err
	}
	return p.privileged(ctx, "chmod", "-R", modeArg(p.opts.DirMode), dir)
}

func (p *Provisioner) mkdir(ctx context.Context, dir string) error {
	return p.privileged(ctx, "mkdir", "-p", dir)
}

func (p *Provisioner) privileged(ctx context.Context, name string, args ...string) error {
	_, err := p.run.Run(ctx, runner.Command{Name: name, Args: args, Privileged: true})
	return err
}

func owner(acct descriptor.Account) string {
	return fmt.Sprintf("%d:%d", acct.UID, acct.GID)
}

func modeArg(mode fs.FileMode) string {
	return strconv.FormatUint(uint64(mode.Perm()), 8)
}
