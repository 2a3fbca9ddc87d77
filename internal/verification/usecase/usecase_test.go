package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/keylock"
	"github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/pkg/validator"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
	"github.com/shandysiswandi/smsotp/internal/verification/outbound/store"
)

const testConfig = `
modules:
  verification:
    code_ttl_seconds: 300
    max_attempts: 3
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeOTP struct {
	codes []string
	i     int
}

func (f *fakeOTP) Generate() (string, error) {
	code := f.codes[f.i%len(f.codes)]
	f.i++
	return code, nil
}

type fakeSMS struct {
	configured bool
	err        error
	sent       []VerificationSMS
}

func (f *fakeSMS) Configured() bool { return f.configured }

func (f *fakeSMS) SendVerificationCode(_ context.Context, msg VerificationSMS) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeMessaging struct {
	mu       sync.Mutex
	issued   []VerificationIssuedEvent
	verified []PhoneVerifiedEvent
}

func (f *fakeMessaging) PublishVerificationIssued(_ context.Context, msg VerificationIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, msg)
	return nil
}

func (f *fakeMessaging) PublishPhoneVerified(_ context.Context, msg PhoneVerifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, msg)
	return nil
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, keylock.ErrLockTimeout
}

// hookedStore runs onGet after each successful read, simulating writers that
// land between a verify's read and its write-back.
type hookedStore struct {
	*store.Memory
	onGet func(ctx context.Context, userID string)
}

func (h *hookedStore) Get(ctx context.Context, userID string) (*entity.Record, error) {
	rec, err := h.Memory.Get(ctx, userID)
	if err == nil && h.onGet != nil {
		hook := h.onGet
		h.onGet = nil
		hook(ctx, userID)
	}
	return rec, err
}

type fixture struct {
	uc    *Usecase
	store *store.Memory
	sms   *fakeSMS
	mq    *fakeMessaging
	clock *fakeClock
	otp   *fakeOTP
	gm    *goroutine.Manager
}

var t0 = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if len(codes) == 0 {
		codes = []string{"123456"}
	}

	ins := instrument.NewNoop()
	f := &fixture{
		store: store.NewMemory(ins),
		sms:   &fakeSMS{configured: true},
		mq:    &fakeMessaging{},
		clock: &fakeClock{now: t0},
		otp:   &fakeOTP{codes: codes},
		gm:    goroutine.NewManager(10),
	}
	f.uc = New(Dependency{
		RepoStore:     f.store,
		RepoSMS:       f.sms,
		RepoMessaging: f.mq,
		Locker:        keylock.NewMemory(),
		Validator:     v,
		Config:        cfg,
		OTP:           f.otp,
		Clock:         f.clock,
		Instrument:    ins,
		Goroutine:     f.gm,
	})

	return f
}

func asError(t *testing.T, err error) *goerror.Error {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T (%v)", err, err)
	}
	return gerr
}

func assertFailure(t *testing.T, err error, status int, msg string) *goerror.Error {
	t.Helper()

	gerr := asError(t, err)
	if gerr.StatusCode() != status {
		t.Fatalf("status = %d, want %d", gerr.StatusCode(), status)
	}
	if gerr.Msg() != msg {
		t.Fatalf("msg = %q, want %q", gerr.Msg(), msg)
	}
	return gerr
}

func TestUsecase_IssueCode(t *testing.T) {
	t.Run("Success", func(t *testing.T) {

		// Arrange
		f := newFixture(t)

		// Act
		out, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.ExpiresIn != 300 {
			t.Fatalf("expires_in = %d, want 300", out.ExpiresIn)
		}

		rec, err := f.store.Get(context.Background(), "u1")
		if err != nil {
			t.Fatalf("record missing: %v", err)
		}
		want := entity.Record{Code: "123456", PhoneNumber: "233551234567", ExpiresAt: t0.Add(300 * time.Second)}
		if *rec != want {
			t.Fatalf("record = %+v, want %+v", *rec, want)
		}

		if len(f.sms.sent) != 1 || f.sms.sent[0].PhoneNumber != "233551234567" || f.sms.sent[0].Code != "123456" {
			t.Fatalf("sent = %+v", f.sms.sent)
		}

		if err := f.gm.Wait(); err != nil {
			t.Fatalf("wait: %v", err)
		}
		if len(f.mq.issued) != 1 || f.mq.issued[0].UserID != "u1" {
			t.Fatalf("issued events = %+v", f.mq.issued)
		}
	})

	t.Run("InvalidPhone", func(t *testing.T) {

		// Arrange
		f := newFixture(t)

		// Act
		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "notanumber"})

		// Assert
		assertFailure(t, err, 400, "Invalid phone number format. Use 233XXXXXXXXX or 0XXXXXXXXX")
		if f.store.Len() != 0 {
			t.Fatalf("store should be empty")
		}
		if len(f.sms.sent) != 0 {
			t.Fatalf("no sms expected")
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{PhoneNumber: "0551234567"})

		gerr := assertFailure(t, err, 400, "Validation error")
		if gerr.Type() != goerror.TypeValidation {
			t.Fatalf("type = %v", gerr.Type())
		}
	})

	t.Run("NotConfigured", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		f.sms.configured = false

		// Act
		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "233551234567"})

		// Assert
		assertFailure(t, err, 500, "SMS service not configured")
		if f.store.Len() != 0 {
			t.Fatalf("store should be empty")
		}
	})

	t.Run("ProviderRejectedKeepsCode", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		f.sms.err = &sms.DeliveryError{StatusCode: 200, Body: "1702"}

		// Act
		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"})

		// Assert
		gerr := assertFailure(t, err, 500, "Failed to send SMS")
		if gerr.Details()["response"] != "1702" {
			t.Fatalf("response = %v", gerr.Details()["response"])
		}

		out, err := f.uc.VerifyCode(context.Background(), VerifyCodeInput{UserID: "u1", Code: "123456"})
		if err != nil {
			t.Fatalf("code should still verify: %v", err)
		}
		if out.PhoneNumber != "233551234567" {
			t.Fatalf("phone = %q", out.PhoneNumber)
		}
	})

	t.Run("ProviderUnreachable", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		f.sms.err = context.DeadlineExceeded

		// Act
		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"})

		// Assert
		gerr := assertFailure(t, err, 500, "Failed to send SMS")
		if gerr.Details()["response"] != "SMS provider did not respond" {
			t.Fatalf("response = %v", gerr.Details()["response"])
		}
	})

	t.Run("ReissueReplacesCode", func(t *testing.T) {

		// Arrange
		f := newFixture(t, "111111", "222222")
		ctx := context.Background()
		if _, err := f.uc.IssueCode(ctx, IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"}); err != nil {
			t.Fatalf("first issue: %v", err)
		}

		// Act
		if _, err := f.uc.IssueCode(ctx, IssueCodeInput{UserID: "u1", PhoneNumber: "0559999999"}); err != nil {
			t.Fatalf("second issue: %v", err)
		}

		// Assert
		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "111111"})
		assertFailure(t, err, 400, "Incorrect code. 2 attempts remaining.")

		out, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "222222"})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if out.PhoneNumber != "233559999999" {
			t.Fatalf("phone = %q", out.PhoneNumber)
		}
	})

	t.Run("SweepsExpiredRecords", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		ctx := context.Background()
		if _, err := f.uc.IssueCode(ctx, IssueCodeInput{UserID: "u2", PhoneNumber: "0551234567"}); err != nil {
			t.Fatalf("issue u2: %v", err)
		}
		f.clock.Set(t0.Add(301 * time.Second))

		// Act
		if _, err := f.uc.IssueCode(ctx, IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"}); err != nil {
			t.Fatalf("issue u1: %v", err)
		}

		// Assert
		if f.store.Len() != 1 {
			t.Fatalf("len = %d, want 1", f.store.Len())
		}
		if _, err := f.store.Get(ctx, "u2"); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("u2 should be swept, got %v", err)
		}
	})

	t.Run("LockBusy", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		f.uc.locker = busyLocker{}

		// Act
		_, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"})

		// Assert
		assertFailure(t, err, 429, "Another request for this user is in progress. Please try again.")
	})
}

func TestUsecase_VerifyCode(t *testing.T) {
	issue := func(t *testing.T, f *fixture) {
		t.Helper()
		if _, err := f.uc.IssueCode(context.Background(), IssueCodeInput{UserID: "u1", PhoneNumber: "0551234567"}); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}

	t.Run("SingleUse", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()

		// Act
		out, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})

		// Assert
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if out.PhoneNumber != "233551234567" {
			t.Fatalf("phone = %q", out.PhoneNumber)
		}

		_, err = f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})
		assertFailure(t, err, 400, "No verification code found. Please request a new code.")

		if err := f.gm.Wait(); err != nil {
			t.Fatalf("wait: %v", err)
		}
		if len(f.mq.verified) != 1 || f.mq.verified[0].PhoneNumber != "233551234567" {
			t.Fatalf("verified events = %+v", f.mq.verified)
		}
	})

	t.Run("AttemptBudget", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()

		wants := []struct {
			msg       string
			remaining int
		}{
			{msg: "Incorrect code. 2 attempts remaining.", remaining: 2},
			{msg: "Incorrect code. 1 attempt remaining.", remaining: 1},
			{msg: "Incorrect code. 0 attempts remaining.", remaining: 0},
		}

		// Act & Assert
		for _, want := range wants {
			_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "000000"})
			gerr := assertFailure(t, err, 400, want.msg)
			if gerr.Details()["remaining_attempts"] != want.remaining {
				t.Fatalf("remaining_attempts = %v, want %d", gerr.Details()["remaining_attempts"], want.remaining)
			}
		}

		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})
		assertFailure(t, err, 400, "No verification code found. Please request a new code.")
	})

	t.Run("ExhaustedRecord", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		ctx := context.Background()
		_ = f.store.Set(ctx, "u1", entity.Record{
			Code:        "123456",
			PhoneNumber: "233551234567",
			ExpiresAt:   t0.Add(time.Minute),
			Attempts:    3,
		})

		// Act
		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})

		// Assert
		assertFailure(t, err, 400, "Too many failed attempts. Please request a new code.")
		if f.store.Len() != 0 {
			t.Fatalf("exhausted record should be deleted")
		}
	})

	t.Run("ConcurrentWrongCodes", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()

		const callers = 50
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			msgs = make(map[string]int)
		)

		// Act
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "000000"})

				var gerr *goerror.Error
				msg := "unexpected success"
				if errors.As(err, &gerr) {
					msg = gerr.Msg()
				} else if err != nil {
					msg = err.Error()
				}

				mu.Lock()
				msgs[msg]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		// Assert
		want := map[string]int{
			"Incorrect code. 2 attempts remaining.":                  1,
			"Incorrect code. 1 attempt remaining.":                   1,
			"Incorrect code. 0 attempts remaining.":                  1,
			"No verification code found. Please request a new code.": callers - 3,
		}
		if len(msgs) != len(want) {
			t.Fatalf("responses = %v, want %v", msgs, want)
		}
		for msg, n := range want {
			if msgs[msg] != n {
				t.Fatalf("responses = %v, want %v", msgs, want)
			}
		}
		if f.store.Len() != 0 {
			t.Fatalf("record should be deleted once the budget is spent")
		}
	})

	t.Run("SweepDuringVerify", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()
		hs := &hookedStore{Memory: f.store}
		hs.onGet = func(ctx context.Context, _ string) {
			f.clock.Set(t0.Add(301 * time.Second))
			if _, err := f.uc.IssueCode(ctx, IssueCodeInput{UserID: "u2", PhoneNumber: "0551234567"}); err != nil {
				t.Fatalf("issue u2: %v", err)
			}
		}
		f.uc.repoStore = hs

		// Act
		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "000000"})

		// Assert
		assertFailure(t, err, 400, "Verification code has expired. Please request a new code.")
		if _, err := f.store.Get(ctx, "u1"); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("u1 should be gone, got %v", err)
		}
		if f.store.Len() != 1 {
			t.Fatalf("len = %d, want 1", f.store.Len())
		}
	})

	t.Run("SweepBeforeMismatchWriteBack", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()
		hs := &hookedStore{Memory: f.store}
		hs.onGet = func(ctx context.Context, _ string) {
			// another issuer whose clock read is already past the expiry
			if _, err := f.store.SweepExpired(ctx, t0.Add(301*time.Second)); err != nil {
				t.Fatalf("sweep: %v", err)
			}
		}
		f.uc.repoStore = hs

		// Act
		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "000000"})
		assertFailure(t, err, 400, "Incorrect code. 2 attempts remaining.")
		f.clock.Set(t0.Add(301 * time.Second))
		_, err = f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})

		// Assert
		assertFailure(t, err, 400, "Verification code has expired. Please request a new code.")
		if f.store.Len() != 0 {
			t.Fatalf("len = %d, want 0", f.store.Len())
		}
	})

	t.Run("ValidAtExpiryInstant", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		f.clock.Set(t0.Add(300 * time.Second))

		// Act
		_, err := f.uc.VerifyCode(context.Background(), VerifyCodeInput{UserID: "u1", Code: "123456"})

		// Assert
		if err != nil {
			t.Fatalf("code should be valid at the expiry instant: %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {

		// Arrange
		f := newFixture(t)
		issue(t, f)
		ctx := context.Background()
		f.clock.Set(t0.Add(300*time.Second + time.Millisecond))

		// Act
		_, err := f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})

		// Assert
		assertFailure(t, err, 400, "Verification code has expired. Please request a new code.")

		_, err = f.uc.VerifyCode(ctx, VerifyCodeInput{UserID: "u1", Code: "123456"})
		assertFailure(t, err, 400, "No verification code found. Please request a new code.")
	})

	t.Run("InvalidCodeFormat", func(t *testing.T) {
		f := newFixture(t)
		issue(t, f)

		_, err := f.uc.VerifyCode(context.Background(), VerifyCodeInput{UserID: "u1", Code: "12ab56"})

		assertFailure(t, err, 400, "Validation error")
		if rec, _ := f.store.Get(context.Background(), "u1"); rec == nil || rec.Attempts != 0 {
			t.Fatalf("malformed code must not consume an attempt: %+v", rec)
		}
	})

	t.Run("LockBusy", func(t *testing.T) {
		f := newFixture(t)
		f.uc.locker = busyLocker{}

		_, err := f.uc.VerifyCode(context.Background(), VerifyCodeInput{UserID: "u1", Code: "123456"})

		assertFailure(t, err, 429, "Another request for this user is in progress. Please try again.")
	})
}

func TestPluralize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{n: 0, want: "attempts"},
		{n: 1, want: "attempt"},
		{n: 2, want: "attempts"},
	}

	for _, tt := range tests {
		if got := pluralize(tt.n, "attempt"); got != tt.want {
			t.Fatalf("pluralize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
