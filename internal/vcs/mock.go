package vcs

import (
	"context"
	"sync"
)

// Fake is a scripted Repository for tests. Configure the return fields,
// then inspect Calls afterwards. Zero value is usable.
type Fake struct {
	mu    sync.Mutex
	Calls []string

	StatusOut  string
	DiffOut    string
	StatOut    []FileStat
	LogOut     string
	PullOut    string
	PushOut    string
	CommitOut  string
	BranchList []string
	Branch     string
	Err        error
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *Fake) Status(context.Context) (string, error) {
	f.record("status")
	return f.StatusOut, f.Err
}

func (f *Fake) Diff(context.Context) (string, error) {
	f.record("diff")
	return f.DiffOut, f.Err
}

func (f *Fake) DiffStat(context.Context) ([]FileStat, error) {
	f.record("diffstat")
	return f.StatOut, f.Err
}

func (f *Fake) Log(_ context.Context, n int) (string, error) {
	f.record("log")
	return f.LogOut, f.Err
}

func (f *Fake) Pull(context.Context) (string, error) {
	f.record("pull")
	return f.PullOut, f.Err
}

func (f *Fake) Push(context.Context) (string, error) {
	f.record("push")
	return f.PushOut, f.Err
}

func (f *Fake) CommitAll(_ context.Context, message string) (string, error) {
	f.record("commit:" + message)
	return f.CommitOut, f.Err
}

func (f *Fake) RestoreAll(context.Context) error {
	f.record("restore")
	return f.Err
}

func (f *Fake) Branches(context.Context) ([]string, error) {
	f.record("branches")
	return f.BranchList, f.Err
}

func (f *Fake) Checkout(_ context.Context, branch string) (string, error) {
	f.record("checkout:" + branch)
	return "Switched to branch '" + branch + "'", f.Err
}

func (f *Fake) CurrentBranch(context.Context) (string, error) {
	f.record("branch")
	return f.Branch, f.Err
}

func (f *Fake) In(string) Repository {
	return f
}
