package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	dirty   bool
	err     error
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}
func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return f.err
}
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.err }

func TestExecute(t *testing.T) {
	log, _ := test.NewNullLogger()

	m := &fakeMigrator{}
	assert.NoError(t, execute(m, "up", 0, 0, log))
	assert.Equal(t, []string{"up"}, m.calls)

	m = &fakeMigrator{}
	assert.NoError(t, execute(m, "down", 2, 0, log))
	assert.Equal(t, -2, m.steps)

	m = &fakeMigrator{err: migrate.ErrNoChange}
	assert.NoError(t, execute(m, "up", 0, 0, log))

	m = &fakeMigrator{err: errors.New("boom")}
	assert.ErrorContains(t, execute(m, "down", 0, 0, log), "rolling back migrations")

	m = &fakeMigrator{}
	assert.Error(t, execute(m, "force", 0, 0, log))
	assert.NoError(t, execute(m, "force", 0, 2, log))
	assert.Equal(t, 2, m.forced)

	assert.NoError(t, execute(&fakeMigrator{err: migrate.ErrNilVersion}, "version", 0, 0, log))
	assert.Error(t, execute(&fakeMigrator{version: 2, dirty: true}, "version", 0, 0, log))
	assert.Error(t, execute(&fakeMigrator{}, "sideways", 0, 0, log))
}
