package security

import (
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []string{
		"https://api.openstreetmap.org/api/0.6/notes.json",
		"https://example.com/path?query=1",
		"http://93.184.216.34/",
	}

	for _, rawURL := range tests {
		if err := g.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
		}
	}
}

func TestValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"空URL", ""},
		{"ftpスキーム", "ftp://example.com/file"},
		{"fileスキーム", "file:///etc/passwd"},
		{"localhost", "http://localhost:8080/"},
		{"ループバックIP", "http://127.0.0.1/"},
		{"プライベートIP 10系", "http://10.0.0.5/"},
		{"プライベートIP 192.168系", "http://192.168.1.1/"},
		{"リンクローカル（メタデータIP）", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, エラーを返すべき", tt.rawURL)
			}
		})
	}
}

func TestValidateURL_SchemeCaseInsensitive(t *testing.T) {
	g := NewSSRFGuard()

	if err := g.ValidateURL("HTTPS://example.com/"); err != nil {
		t.Errorf("大文字スキームが拒否された: %v", err)
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}

	// SSRF防止クライアントはプライベートIPへのアクセスをDialerレベルで拒否する
	_, err := client.Get("http://127.0.0.1:1/")
	if err == nil {
		t.Error("ループバックへのリクエストが拒否されなかった")
	}
}
