package browser

import (
	"strings"
	"testing"
)

func TestCondenseDOM(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxLength  int
		wantTitle  string
		wantActive []string
		wantHTML   []string // substrings that should be present
		wantNot    []string // substrings that should NOT be present
		truncated  bool
	}{
		{
			name: "script and style removal",
			input: `<html>
				<head>
					<title>Demo Shop</title>
					<script>window.demoShop = {};</script>
					<style>body { color: red; }</style>
				</head>
				<body>
					<h1 id="brand">Demo Shop</h1>
				</body>
			</html>`,
			maxLength: 10000,
			wantTitle: "Demo Shop",
			wantHTML:  []string{`<h1 id="brand">`, "Demo Shop"},
			wantNot:   []string{"<script>", "window.demoShop", "<style>", "color: red"},
		},
		{
			name: "active sections reported",
			input: `<html><body>
				<section id="login-page" class="page"></section>
				<section id="dashboard-page" class="page active">
					<div id="user-greeting"><h3>Hello, Student User!</h3></div>
				</section>
			</body></html>`,
			maxLength:  10000,
			wantActive: []string{"dashboard-page"},
			wantHTML:   []string{`<section id="dashboard-page" class="page active">`, "Hello, Student User!"},
		},
		{
			name: "password values dropped",
			input: `<html><body>
				<form id="login-form">
					<input type="text" id="username" value="student">
					<input type="password" id="password" value="Password123">
					<button type="submit">Login</button>
				</form>
			</body></html>`,
			maxLength: 10000,
			wantHTML:  []string{`value="student"`, `<input type="password" id="password">`, `<button type="submit">`},
			wantNot:   []string{"Password123"},
		},
		{
			name:      "truncation",
			input:     `<html><body><p>` + strings.Repeat("x", 200) + `</p></body></html>`,
			maxLength: 50,
			wantHTML:  []string{"..."},
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CondenseDOM(tt.input, tt.maxLength)
			if err != nil {
				t.Fatalf("CondenseDOM() error = %v", err)
			}

			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if strings.Join(got.Active, ",") != strings.Join(tt.wantActive, ",") {
				t.Errorf("Active = %v, want %v", got.Active, tt.wantActive)
			}
			if got.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", got.Truncated, tt.truncated)
			}
			for _, want := range tt.wantHTML {
				if !strings.Contains(got.HTML, want) {
					t.Errorf("HTML missing %q\nGot:\n%s", want, got.HTML)
				}
			}
			for _, not := range tt.wantNot {
				if strings.Contains(got.HTML, not) {
					t.Errorf("HTML should not contain %q\nGot:\n%s", not, got.HTML)
				}
			}
		})
	}
}

func TestShouldPreserveAttribute(t *testing.T) {
	tests := []struct {
		tag, attr string
		want      bool
	}{
		{"div", "id", true},
		{"div", "class", true},
		{"div", "data-role", true},
		{"div", "style", false},
		{"a", "href", true},
		{"button", "type", true},
		{"button", "onclick", false},
		{"input", "placeholder", true},
	}
	for _, tt := range tests {
		if got := shouldPreserveAttribute(tt.tag, tt.attr); got != tt.want {
			t.Errorf("shouldPreserveAttribute(%q, %q) = %v, want %v", tt.tag, tt.attr, got, tt.want)
		}
	}
}
