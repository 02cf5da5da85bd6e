package main

import "testing"

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "42", want: 42},
		{input: "0", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseID(tt.input)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseID(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "digest", "notify", "migrate", "user", "token"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q is not registered: %v", name, err)
		}
	}
}

func TestNotifyRequiresPostID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"notify"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without post id")
	}
}
