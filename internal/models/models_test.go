package models

import "testing"

func TestTrackValidate(t *testing.T) {
	tc := []struct {
		name    string
		track   Track
		wantErr bool
	}{
		{
			name:    "valid track",
			track:   Track{ID: "4uLU6hMCjMI75M1A2tKUQC", Name: "Never Gonna Give You Up", Artist: "Rick Astley"},
			wantErr: false,
		},
		{
			name:    "missing id",
			track:   Track{Name: "Ghost Track", Artist: "Nobody"},
			wantErr: true,
		},
		{
			name:    "id alone is enough",
			track:   Track{ID: "abc123"},
			wantErr: false,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestTrackIdentity(t *testing.T) {
	a := Track{ID: "id1", Name: "Song", Artist: "Artist", Album: "Album A", Popularity: 10}
	b := Track{ID: "id1", Name: "Song", Artist: "Artist", Album: "Album B", Popularity: 90}
	c := Track{ID: "id1", Name: "Song (Remastered)", Artist: "Artist"}

	if a.Identity() != b.Identity() {
		t.Error("expected tracks differing only in non-identity fields to share an identity")
	}
	if a.Identity() == c.Identity() {
		t.Error("expected a renamed track to have a distinct identity")
	}
}

func TestTrackURI(t *testing.T) {
	tc := []struct {
		name string
		id   string
		want string
	}{
		{
			name: "bare id",
			id:   "4uLU6hMCjMI75M1A2tKUQC",
			want: "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name: "already a URI",
			id:   "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			want: "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrackURI(tt.id); got != tt.want {
				t.Errorf("TrackURI() = %v, want %v", got, tt.want)
			}
		})
	}
}
