package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"groupsync/internal/db"
	"groupsync/internal/db/repository"
	"groupsync/internal/domain"
	"groupsync/internal/graph"
	"groupsync/internal/sync"
)

// session bundles the directory-backed engine and the optional run-history
// store for one command invocation.
type session struct {
	engine *sync.Engine
	runs   *repository.RunRepo
	tokens graph.TokenProvider

	closers []func()
}

// Close releases the session's resources in reverse acquisition order.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// credentials builds the token provider for directory calls. Precedence:
// a pre-set provider (tests), the device-code flow, then the client secret,
// prompted for on a terminal when missing.
func (st *settings) credentials() (graph.TokenProvider, error) {
	if st.tokens != nil {
		return st.tokens, nil
	}
	if st.tenantID == "" || st.clientID == "" {
		return nil, fmt.Errorf("directory credentials required: pass --tenant and --client-id, set GROUPSYNC_TENANT_ID and GROUPSYNC_CLIENT_ID, or configure a profile")
	}
	if st.deviceCode {
		return graph.NewDeviceCodeProvider(st.tenantID, st.clientID, os.Stderr)
	}

	secret := st.clientSecret
	if secret == "" {
		if !isStdinTTY() {
			return nil, fmt.Errorf("client secret required: pass --client-secret, set GROUPSYNC_CLIENT_SECRET, or use --device-code")
		}
		fmt.Fprint(os.Stderr, "Client secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read client secret: %w", err)
		}
		secret = string(raw)
	}
	return graph.NewClientSecretProvider(st.tenantID, st.clientID, secret)
}

// openSession connects to the directory and, when a history database is
// configured, opens the run-history store.
func (st *settings) openSession() (*session, error) {
	tokens, err := st.credentials()
	if err != nil {
		return nil, err
	}

	client, err := graph.NewClient(graph.Config{
		TokenProvider: tokens,
		BaseURL:       st.graphURL,
		Logger:        st.logger.With("component", "graph"),
	})
	if err != nil {
		return nil, err
	}

	sess := &session{tokens: tokens, closers: []func(){client.Close}}

	var store domain.RunStore
	if st.historyDB != "" {
		runs, closeDBs, err := openRunStore(st.historyDB)
		if err != nil {
			sess.Close()
			return nil, err
		}
		sess.runs = runs
		sess.closers = append(sess.closers, closeDBs)
		store = runs
	}

	sess.engine = sync.NewEngine(client, store, st.logger)
	return sess, nil
}

// openRuns opens only the run-history store, for commands that never talk
// to the directory.
func (st *settings) openRuns() (*repository.RunRepo, func(), error) {
	if st.historyDB == "" {
		return nil, nil, fmt.Errorf("no history database configured: pass --history-db or set GROUPSYNC_HISTORY_DB")
	}
	return openRunStore(st.historyDB)
}

func openRunStore(path string) (*repository.RunRepo, func(), error) {
	writeDB, readDB, err := db.OpenSQLitePair(path, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, nil, fmt.Errorf("migrate history database: %w", err)
	}
	closeDBs := func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}
	return repository.NewRunRepo(writeDB, readDB), closeDBs, nil
}
