package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphFixture serves a small directory: a Sales group holding the iPhone12
// device and a nested group with the user Robin, an inventory of two
// devices, and a Target group currently holding one stale user.
func graphFixture(rec *requestRecorder, addStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")

		switch r.Method + " " + r.URL.Path {
		case "GET /groups":
			filter := r.URL.Query().Get("$filter")
			switch {
			case strings.Contains(filter, "'Sales'"):
				fmt.Fprint(w, `{"value":[{"id":"g-sales","displayName":"Sales"}]}`)
			case strings.Contains(filter, "'Target'"):
				fmt.Fprint(w, `{"value":[{"id":"g-target","displayName":"Target"}]}`)
			default:
				fmt.Fprint(w, `{"value":[]}`)
			}
		case "GET /groups/g-sales/members":
			fmt.Fprint(w, `{"value":[
				{"@odata.type":"#microsoft.graph.device","id":"dobj-1","displayName":"iPhone12"},
				{"@odata.type":"#microsoft.graph.group","id":"g-nested","displayName":"Nested"}
			]}`)
		case "GET /groups/g-nested/members":
			fmt.Fprint(w, `{"value":[{"@odata.type":"#microsoft.graph.user","id":"u-2","displayName":"Robin"}]}`)
		case "GET /groups/g-target/members":
			fmt.Fprint(w, `{"value":[{"@odata.type":"#microsoft.graph.user","id":"u-9","displayName":"Old User"}]}`)
		case "GET /deviceManagement/managedDevices":
			if strings.Contains(r.URL.Query().Get("$filter"), "deviceName eq 'iPhone12'") {
				fmt.Fprint(w, `{"value":[{"id":"mdm-1","deviceName":"iPhone12","operatingSystem":"iOS","osVersion":"14.1","userId":"u-1"}]}`)
				return
			}
			fmt.Fprint(w, `{"value":[
				{"id":"mdm-1","deviceName":"iPhone12","operatingSystem":"iOS","osVersion":"14.1","userId":"u-1"},
				{"id":"mdm-2","deviceName":"Surface","operatingSystem":"Windows","osVersion":"10.0.19044","userId":"u-2"}
			]}`)
		case "POST /groups/g-target/members/$ref":
			if addStatus >= 400 {
				w.WriteHeader(addStatus)
				fmt.Fprint(w, `{"error":{"code":"InternalServerError","message":"something broke"}}`)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			if r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/$ref") {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error":{"code":"ResourceNotFound","message":"no fixture for %s %s"}}`, r.Method, r.URL.Path)
		}
	}
}

func TestSyncCmd_DryRunMakesNoMutations(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target",
		"--min-ios", "15.0", "--dry-run", "--no-color")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)

	assert.Contains(t, out, `- user "Old User" will be removed`)
	assert.Contains(t, out, `+ device "iPhone12" will be added`)
	assert.Contains(t, out, "No changes were made.")
	assert.Empty(t, rec.mutations(), "dry run must not issue a single mutating call")
}

func TestSyncCmd_AutoApproveApplies(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target",
		"--min-ios", "15.0", "--auto-approve", "--no-color")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)

	assert.Contains(t, out, "Old User (u-9) removed")
	assert.Contains(t, out, "iPhone12 (mdm-1) added")
	assert.Contains(t, out, "Apply complete: 1 added, 0 already members, 1 removed")

	muts := rec.mutations()
	require.Len(t, muts, 2)
	assert.Equal(t, http.MethodDelete, muts[0].Method)
	assert.Equal(t, "/groups/g-target/members/u-9/$ref", muts[0].Path)
	assert.Equal(t, http.MethodPost, muts[1].Method)
	assert.Contains(t, muts[1].Body, "directoryObjects/mdm-1")
}

func TestSyncCmd_RemovalsCompleteBeforeAdds(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target",
		"--min-ios", "15.0", "--auto-approve", "--no-color")

	restore := captureStdout(t)
	require.NoError(t, rootCmd.Execute())
	restore()

	var sawPost bool
	for _, m := range rec.mutations() {
		if m.Method == http.MethodPost {
			sawPost = true
		}
		if m.Method == http.MethodDelete {
			assert.False(t, sawPost, "no removal may run after an addition")
		}
	}
}

func TestSyncCmd_FailOnErrors(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, http.StatusInternalServerError))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target",
		"--min-ios", "15.0", "--auto-approve", "--fail-on-errors", "--no-color")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "membership change")
	assert.Contains(t, out, "1 failed")
}

func TestSyncCmd_FailedAddsDoNotFailRunByDefault(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, http.StatusInternalServerError))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target",
		"--min-ios", "15.0", "--auto-approve", "--no-color")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	restore()
	require.NoError(t, err, "item failures are reported, not escalated")
}

func TestSyncCmd_RequiresTarget(t *testing.T) {
	rootCmd := newTestRoot(t, "http://127.0.0.1:1", "sync", "--group", "Sales")

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target group")
}

func TestSyncCmd_RequiresTerminalForConfirmation(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"sync", "--group", "Sales", "--target", "Target", "--min-ios", "15.0")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	restore()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--auto-approve")
	assert.Empty(t, rec.mutations())
}

func TestPlanCmd_NoChanges(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	// Ghost does not resolve, so nothing matches; the target is cleared of
	// nothing because the plan never gets that far without changes.
	rootCmd := newTestRoot(t, srv.URL,
		"plan", "--group", "Ghost", "--target", "Target", "--clear=false", "--no-color")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)
	assert.Contains(t, out, "No changes.")
}

func TestPlanCmd_JSONOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL,
		"plan", "--group", "Ghost", "--target", "Target", "--clear=false", "-o", "json")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)

	var plan struct {
		TargetGroupID string `json:"target_group_id"`
		ToAdd         []any  `json:"to_add"`
		ToRemove      []any  `json:"to_remove"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, "g-target", plan.TargetGroupID)
	assert.Empty(t, plan.ToAdd)
	assert.Empty(t, plan.ToRemove)
}

func TestDevicesCmd_OrgWide(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL, "devices", "--min-ios", "15.0")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)

	assert.Contains(t, out, "iPhone12")
	assert.NotContains(t, out, "Surface", "configured platforms are exclusive")
	assert.Contains(t, out, "Matched 1 device(s).")
}

func TestExpandCmd(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL, "expand", "Sales")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)

	assert.Contains(t, out, "iPhone12")
	assert.Contains(t, out, "Robin")
	assert.Contains(t, out, "2 member(s) after expansion.")
}

func TestExpandCmd_UnknownGroup(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(graphFixture(rec, 0))
	defer srv.Close()

	rootCmd := newTestRoot(t, srv.URL, "expand", "Ghost")

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghost")
}

func TestAuthTestCmd(t *testing.T) {
	rootCmd := newTestRoot(t, "http://127.0.0.1:1", "auth", "test")

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)
	assert.Contains(t, out, "Authenticated.")
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	rootCmd, _ := newRootCmd()
	rootCmd.SetArgs([]string{"version"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	out := restore()
	require.NoError(t, err)
	assert.Contains(t, out, "groupsync version dev (commit: none)")
}

func TestRootCmd_FlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {TenantID: "profile-tenant"},
		},
	}))

	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{name: "profile value used last", want: "profile-tenant"},
		{name: "env beats profile", env: "env-tenant", want: "env-tenant"},
		{name: "flag beats env", env: "env-tenant", args: []string{"--tenant", "flag-tenant"}, want: "flag-tenant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("GROUPSYNC_TENANT_ID", tt.env)
			} else {
				t.Setenv("GROUPSYNC_TENANT_ID", "")
			}

			rootCmd, st := newRootCmd()
			rootCmd.SetArgs(append(tt.args, "version"))

			restore := captureStdout(t)
			require.NoError(t, rootCmd.Execute())
			restore()
			assert.Equal(t, tt.want, st.tenantID)
		})
	}
}

func TestRootCmd_UnknownProfileRejected(t *testing.T) {
	rootCmd := newTestRoot(t, "http://127.0.0.1:1", "--profile", "nope", "version")

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile "nope" not found`)
}

func TestRootCmd_InvalidOutputFormat(t *testing.T) {
	rootCmd := newTestRoot(t, "http://127.0.0.1:1", "version", "-o", "yaml")

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
