package syncer

import (
	"testing"
	"time"

	"github.com/tallyapp/tally/internal/models"
)

func TestResolve(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	meta := func(at time.Time, deleted bool) *models.SyncMeta {
		m := &models.SyncMeta{UpdatedAt: at}
		if deleted {
			d := at
			m.DeletedAt = &d
		}
		return m
	}

	tests := []struct {
		name   string
		local  *models.SyncMeta
		remote *models.SyncMeta
		want   Decision
	}{
		{
			name:   "no remote keeps local",
			local:  meta(base, false),
			remote: nil,
			want:   KeepLocal,
		},
		{
			name:   "no local applies remote",
			local:  nil,
			remote: meta(base, false),
			want:   ApplyRemote,
		},
		{
			name:   "newer remote wins",
			local:  meta(base, false),
			remote: meta(base.Add(time.Second), false),
			want:   ApplyRemote,
		},
		{
			name:   "newer local wins",
			local:  meta(base.Add(time.Second), false),
			remote: meta(base, false),
			want:   KeepLocal,
		},
		{
			name:   "exact tie goes to remote",
			local:  meta(base, false),
			remote: meta(base, false),
			want:   ApplyRemote,
		},
		{
			name:   "remote tombstone beats newer local edit",
			local:  meta(base.Add(time.Hour), false),
			remote: meta(base, true),
			want:   ApplyRemote,
		},
		{
			name:   "newer live remote resurrects local tombstone",
			local:  meta(base, true),
			remote: meta(base.Add(time.Second), false),
			want:   ApplyRemote,
		},
		{
			name:   "older live remote does not resurrect local tombstone",
			local:  meta(base, true),
			remote: meta(base.Add(-time.Second), false),
			want:   KeepLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.local, tt.remote); got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}
