package scheduler

import (
	"context"
	"errors"
	"testing"
)

type fakeRebuilder struct {
	n     int
	err   error
	calls int
}

func (f *fakeRebuilder) RebuildIndex(ctx context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

func TestURIIndexRebuilder_Rebuild(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name    string
		store   *fakeRebuilder
		wantErr bool
	}{
		{name: "entries rebuilt", store: &fakeRebuilder{n: 12}},
		{name: "empty store", store: &fakeRebuilder{}},
		{name: "store failure", store: &fakeRebuilder{err: errors.New("boom")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewURIIndexRebuilder(tt.store, env.log)
			err := r.Rebuild(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Rebuild() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.store.calls != 1 {
				t.Errorf("RebuildIndex called %d times, want 1", tt.store.calls)
			}
		})
	}
}
