package storage

import "testing"

func TestGCSPublicBase(t *testing.T) {
	tests := []struct {
		name string
		cfg  GCSConfig
		want string
	}{
		{
			name: "explicit override wins",
			cfg:  GCSConfig{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com",
		},
		{
			name: "default provider URL",
			cfg:  GCSConfig{Bucket: "media"},
			want: "https://storage.googleapis.com/media",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gcsPublicBase(tt.cfg); got != tt.want {
				t.Errorf("gcsPublicBase = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGCS_ResolveTargets(t *testing.T) {
	g := &GCS{bucket: "media", publicBase: "https://storage.googleapis.com/media"}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"public URL", "https://storage.googleapis.com/media/news/a.png", "news/a.png"},
		{"scheme prefix", "gs://media/news/b.png", "news/b.png"},
		{"bare key", "news/c.png", "news/c.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.ResolveTargets([]Ref{PathRef(tt.path)})[0]
			if got.Key != tt.want {
				t.Errorf("key = %q, want %q", got.Key, tt.want)
			}
		})
	}
}

func TestGCS_RoundTrip(t *testing.T) {
	g := &GCS{bucket: "media", publicBase: gcsPublicBase(GCSConfig{Bucket: "media"})}

	key := "products/1716000000000-abc.webp"
	resolved := g.ResolveTargets([]Ref{PathRef(g.PublicPath(key))})[0]
	if resolved.Key != key {
		t.Errorf("round trip: resolved key %q, want %q", resolved.Key, key)
	}
}
