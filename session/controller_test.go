package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/classes"
	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/jrsteele09/classroom-portal/gateway"
	apperrors "github.com/jrsteele09/classroom-portal/internal/errors"
	"github.com/jrsteele09/classroom-portal/internal/fakeapi"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testCivilID  = "290010112345"
	testPassword = "secret"
	testSchoolID = "5f0c7d8e-3c1a-4b4e-9d7a-1f2e3d4c5b6a"
)

type testFixture struct {
	api     *fakeapi.API
	server  *httptest.Server
	store   credentials.Store
	gateway *gateway.Gateway
	session *session.Controller
	classes *classes.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	api := fakeapi.New(fakeapi.Options{BcryptCost: bcrypt.MinCost})
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	_, err := api.SeedTeacher(authapi.RegisterRequest{CivilID: testCivilID, FullName: "Sara Ahmed", Password: testPassword, SchoolID: testSchoolID})
	require.NoError(t, err)

	return newFixture(t, api, server, credentials.NewInMemoryStore())
}

// newFixture wires a controller over an existing API and store, the way a
// process restart would.
func newFixture(t *testing.T, api *fakeapi.API, server *httptest.Server, store credentials.Store) *testFixture {
	t.Helper()
	gw := gateway.New(store, gateway.Options{BaseURL: server.URL, Metrics: gateway.NewMetrics(prometheus.NewRegistry())})
	controller := session.New(authapi.New(gw, authapi.DefaultPaths()), store)
	gw.Attach(controller)
	return &testFixture{api: api, server: server, store: store, gateway: gw, session: controller, classes: classes.New(gw)}
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: testPassword}))
}

func TestNew_StartsUnauthenticatedWithEmptyStore(t *testing.T) {
	f := setupTestFixture(t)

	state := f.session.State()
	require.Equal(t, session.StatusUnauthenticated, state.Status)
	require.False(t, f.session.IsAuthenticated())
	_, initialized := f.session.AccessToken()
	require.False(t, initialized)
}

func TestLogin_Success(t *testing.T) {
	f := setupTestFixture(t)

	f.login(t)

	state := f.session.State()
	require.Equal(t, session.StatusAuthenticated, state.Status)
	require.Equal(t, "Sara Ahmed", state.Identity.FullName)
	require.Nil(t, state.Err)
	require.True(t, f.session.IsAuthenticated())

	record, ok := f.store.Load()
	require.True(t, ok)
	require.True(t, record.Pair.Complete())
	require.Equal(t, state.Identity.ID, record.Identity.ID)

	token, initialized := f.session.AccessToken()
	require.True(t, initialized)
	require.Equal(t, record.Pair.AccessToken, token)
}

func TestLogin_Failure(t *testing.T) {
	f := setupTestFixture(t)

	err := f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrAuthenticationRejected)

	state := f.session.State()
	require.Equal(t, session.StatusFailed, state.Status)
	require.Equal(t, "Invalid credentials", state.Err.Message)
	require.False(t, f.session.IsAuthenticated())

	_, ok := f.store.Load()
	require.False(t, ok)

	// Retrying straight from Failed works without clearing the error first.
	f.login(t)
	require.True(t, f.session.IsAuthenticated())
}

func TestLogin_FailureKeepsExistingStore(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	before, _ := f.store.Load()

	require.Error(t, f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: "wrong"}))

	after, ok := f.store.Load()
	require.True(t, ok)
	require.Equal(t, before.Pair, after.Pair)
}

func TestLogin_NetworkFailureUsesGenericMessage(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Close()

	err := f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: testPassword})
	require.Equal(t, apperrors.KindNetworkFailure, apperrors.KindOf(err))
	require.Equal(t, "login failed", f.session.State().Err.Message)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)

	err := f.session.Register(context.Background(), authapi.RegisterRequest{CivilID: testCivilID, FullName: "Dup", Password: "pw", SchoolID: testSchoolID})
	require.Error(t, err)
	require.Equal(t, "User with this civil ID already exists", f.session.State().Err.Message)

	require.NoError(t, f.session.Register(context.Background(), authapi.RegisterRequest{CivilID: "300010154321", FullName: "New Teacher", Password: "pw", SchoolID: testSchoolID}))
	state := f.session.State()
	require.Equal(t, session.StatusAuthenticated, state.Status)
	require.Equal(t, "New Teacher", state.Identity.FullName)

	record, ok := f.store.Load()
	require.True(t, ok)
	require.Equal(t, "300010154321", record.Identity.CivilID)
}

func TestClearError(t *testing.T) {
	f := setupTestFixture(t)
	require.Error(t, f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: "wrong"}))
	calls := f.api.TotalCalls()

	f.session.ClearError()

	state := f.session.State()
	require.Equal(t, session.StatusUnauthenticated, state.Status)
	require.Nil(t, state.Err)
	require.Equal(t, calls, f.api.TotalCalls())

	// No effect outside Failed.
	f.login(t)
	f.session.ClearError()
	require.True(t, f.session.IsAuthenticated())
}

func TestLogout_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	f.session.Logout(context.Background())
	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	_, ok := f.store.Load()
	require.False(t, ok)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteLogout))

	f.session.Logout(context.Background())
	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	_, ok = f.store.Load()
	require.False(t, ok)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteLogout))
}

func TestLogout_RemoteFailureIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.server.Close()

	f.session.Logout(context.Background())

	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	_, ok := f.store.Load()
	require.False(t, ok)
}

func TestLogout_ExpiredAccessDoesNotRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()

	f.session.Logout(context.Background())

	require.Equal(t, 0, f.api.Calls(fakeapi.RouteRefresh))
	_, ok := f.store.Load()
	require.False(t, ok)
}

func TestRefreshIdentity_NoStoredPair(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.session.RefreshIdentity(context.Background()))
	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	require.Equal(t, 0, f.api.TotalCalls())
}

func TestRefreshIdentity_RestoresAfterRestart(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	restarted := newFixture(t, f.api, f.server, f.store)
	require.Equal(t, session.StatusAuthenticating, restarted.session.State().Status)
	require.False(t, restarted.session.IsAuthenticated())

	require.NoError(t, restarted.session.RefreshIdentity(context.Background()))
	state := restarted.session.State()
	require.Equal(t, session.StatusAuthenticated, state.Status)
	require.Equal(t, "Sara Ahmed", state.Identity.FullName)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteMe))
}

func TestRefreshIdentity_RefreshesExpiredAccess(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	before, _ := f.store.Load()
	f.api.ExpireAccessTokens()

	require.NoError(t, f.session.RefreshIdentity(context.Background()))

	require.True(t, f.session.IsAuthenticated())
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteRefresh))
	after, ok := f.store.Load()
	require.True(t, ok)
	require.NotEqual(t, before.Pair.AccessToken, after.Pair.AccessToken)
	token, _ := f.session.AccessToken()
	require.Equal(t, after.Pair.AccessToken, token)
}

func TestRefreshIdentity_InvalidRefreshClearsEverything(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()
	f.api.RevokeRefreshTokens()

	err := f.session.RefreshIdentity(context.Background())
	require.ErrorIs(t, err, apperrors.ErrAuthenticationRequired)

	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	_, ok := f.store.Load()
	require.False(t, ok)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteRefresh))
}

func TestGateway_TransparentRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	stateBefore := f.session.State()
	f.api.ExpireAccessTokens()

	list, err := f.classes.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)

	state := f.session.State()
	require.Equal(t, session.StatusAuthenticated, state.Status)
	require.Equal(t, stateBefore.Version, state.Version)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteRefresh))
	require.Equal(t, 2, f.api.Calls(fakeapi.RouteClasses))
}

func TestGateway_RejectedRefreshSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()
	f.api.RevokeRefreshTokens()

	_, err := f.classes.List(context.Background())
	require.ErrorIs(t, err, apperrors.ErrAuthenticationRequired)

	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	token, initialized := f.session.AccessToken()
	require.True(t, initialized)
	require.Empty(t, token)
	_, ok := f.store.Load()
	require.False(t, ok)
}

// heldRefresh lets the API process /auth/refresh but holds the response until
// release is called.
type heldRefresh struct {
	api         http.Handler
	arrived     chan struct{}
	released    chan struct{}
	arriveOnce  sync.Once
	releaseOnce sync.Once
}

func newHeldRefresh(api http.Handler) *heldRefresh {
	return &heldRefresh{api: api, arrived: make(chan struct{}), released: make(chan struct{})}
}

func (h *heldRefresh) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != fakeapi.RouteRefresh {
		h.api.ServeHTTP(w, r)
		return
	}
	rec := httptest.NewRecorder()
	h.api.ServeHTTP(rec, r)
	h.arriveOnce.Do(func() { close(h.arrived) })
	<-h.released

	for key, values := range rec.Header() {
		w.Header()[key] = values
	}
	w.WriteHeader(rec.Code)
	_, _ = w.Write(rec.Body.Bytes())
}

func (h *heldRefresh) release() {
	h.releaseOnce.Do(func() { close(h.released) })
}

func setupHeldRefreshFixture(t *testing.T) (*testFixture, *heldRefresh) {
	t.Helper()
	api := fakeapi.New(fakeapi.Options{BcryptCost: bcrypt.MinCost})
	_, err := api.SeedTeacher(authapi.RegisterRequest{CivilID: testCivilID, FullName: "Sara Ahmed", Password: testPassword, SchoolID: testSchoolID})
	require.NoError(t, err)

	held := newHeldRefresh(api)
	server := httptest.NewServer(held)
	t.Cleanup(server.Close)
	// Runs before server.Close so a failed test never leaves a handler blocked.
	t.Cleanup(held.release)

	return newFixture(t, api, server, credentials.NewInMemoryStore()), held
}

// listInBackground starts a class listing and waits until its refresh reached the API.
func listInBackground(t *testing.T, f *testFixture, held *heldRefresh) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		_, err := f.classes.List(context.Background())
		result <- err
	}()
	select {
	case <-held.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never reached the API")
	}
	return result
}

func waitForResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
		return nil
	}
}

func TestLogout_RefreshLandingAfterwardsIsDiscarded(t *testing.T) {
	f, held := setupHeldRefreshFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()

	result := listInBackground(t, f, held)

	f.session.Logout(context.Background())
	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	_, stored := f.store.Load()
	require.False(t, stored)

	held.release()
	err := waitForResult(t, result)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationRequired, "the request must not complete for a signed out session")

	_, stored = f.store.Load()
	require.False(t, stored, "a late refresh must not restore credentials")
	require.Equal(t, session.StatusUnauthenticated, f.session.State().Status)
	token, _ := f.session.AccessToken()
	require.Empty(t, token)
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteClasses), "no retry after the session changed")
}

func TestLogin_SurvivesLateRefreshRejection(t *testing.T) {
	f, held := setupHeldRefreshFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()
	f.api.RevokeRefreshTokens()

	result := listInBackground(t, f, held)

	// A fresh login completes while the old request's refresh is still failing.
	f.login(t)
	fresh, ok := f.store.Load()
	require.True(t, ok)

	held.release()
	err := waitForResult(t, result)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationRequired)

	require.True(t, f.session.IsAuthenticated(), "the newer login keeps its session")
	record, ok := f.store.Load()
	require.True(t, ok)
	require.Equal(t, fresh.Pair, record.Pair)
	token, _ := f.session.AccessToken()
	require.Equal(t, fresh.Pair.AccessToken, token)
}

func TestGateway_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.api.ExpireAccessTokens()

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.classes.List(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteRefresh))
	require.True(t, f.session.IsAuthenticated())
}

func TestSubscribe_LatestWins(t *testing.T) {
	f := setupTestFixture(t)
	updates, unsubscribe := f.session.Subscribe()
	defer unsubscribe()

	initial := <-updates
	require.Equal(t, session.StatusUnauthenticated, initial.Status)

	// Two transitions (Authenticating, Authenticated) without reading.
	f.login(t)

	latest := <-updates
	require.Equal(t, session.StatusAuthenticated, latest.Status)
	select {
	case s := <-updates:
		t.Fatalf("unexpected extra state %v", s.Status)
	default:
	}

	unsubscribe()
	f.session.Logout(context.Background())
	_, open := <-updates
	require.False(t, open, "no state after unsubscribe")
}

func TestSubscribe_UnsubscribeEndsRange(t *testing.T) {
	f := setupTestFixture(t)
	updates, unsubscribe := f.session.Subscribe()

	done := make(chan int)
	go func() {
		seen := 0
		for range updates {
			seen++
		}
		done <- seen
	}()

	f.login(t)
	require.Eventually(t, f.session.IsAuthenticated, 2*time.Second, 10*time.Millisecond)
	unsubscribe()
	unsubscribe()

	select {
	case seen := <-done:
		require.GreaterOrEqual(t, seen, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("range over a cancelled subscription never ended")
	}
}

func TestWatch_ClosedOnTransition(t *testing.T) {
	f := setupTestFixture(t)
	state, changed := f.session.Watch()
	require.Equal(t, session.StatusUnauthenticated, state.Status)

	go func() {
		_ = f.session.Login(context.Background(), authapi.LoginRequest{CivilID: testCivilID, Password: testPassword})
	}()

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no transition observed")
	}
	require.Eventually(t, f.session.IsAuthenticated, 2*time.Second, 10*time.Millisecond)
}

func TestState_ReturnsCopy(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	state := f.session.State()
	state.Identity.FullName = "mutated"
	require.Equal(t, "Sara Ahmed", f.session.State().Identity.FullName)
}
