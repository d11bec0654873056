package service

import (
	"bytes"
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touristalert/backend/pkg/clock"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"github.com/touristalert/backend/services/auth/internal/secret"
)

const strongPassword = "Himalaya#2024"

var codePattern = regexp.MustCompile(`code is: (\d{6})`)

type sentMail struct {
	To, Subject, Body string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (s *recordingSink) Send(_ context.Context, to, subject, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return true
}

func (s *recordingSink) bySubject(subject string) []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMail
	for _, m := range s.sent {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// lastCode returns the most recent code mailed to the address.
func (s *recordingSink) lastCode(t *testing.T, to string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].To != to {
			continue
		}
		if m := codePattern.FindStringSubmatch(s.sent[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no code mailed to %s", to)
	return ""
}

type recordingBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *recordingBus) Publish(_ context.Context, subject string, _ interface{}) error {
	b.mu.Lock()
	b.subjects = append(b.subjects, subject)
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// captureLogs routes the package logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.Default()
	logger.SetDefault(logger.New(&buf, "debug"))
	t.Cleanup(func() { logger.SetDefault(prev) })
	return &buf
}

type harness struct {
	store    *repository.MemoryStore
	clock    *clock.Fake
	sink     *recordingSink
	bus      *recordingBus
	creds    credentials.Service
	accounts AccountService
	resets   PasswordResetService
	guides   GuideService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: repository.NewMemoryStore(),
		clock: clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		sink:  &recordingSink{},
		bus:   &recordingBus{},
	}
	h.creds = credentials.NewService(credentials.Config{
		Secret:     "test-secret",
		Issuer:     "test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}, repository.NewMemoryBlacklist(h.clock.Now), h.clock.Now)

	deps := Deps{
		Store:       h.store,
		Credentials: h.creds,
		Sink:        h.sink,
		Events:      h.bus,
		Clock:       h.clock,
	}
	h.accounts = NewAccountService(deps)
	h.resets = NewPasswordResetService(deps)
	h.guides = NewGuideService(deps)
	return h
}

func touristRequest(email, phone string) *domain.RegisterRequest {
	return &domain.RegisterRequest{
		Email:       email,
		Password:    strongPassword,
		FullName:    "Ram Thapa",
		PhoneNumber: phone,
		Role:        domain.RoleTourist,
	}
}

func guideRequest(email, phone, license string) *domain.RegisterRequest {
	r := touristRequest(email, phone)
	r.FullName = "Sita Sherpa"
	r.Role = domain.RoleGuide
	r.LicenseNumber = license
	r.LicenseIssuedBy = "Nepal Tourism Board"
	return r
}

func (h *harness) register(t *testing.T, req *domain.RegisterRequest) *domain.RegisterResult {
	t.Helper()
	res, err := h.accounts.Register(context.Background(), req)
	require.NoError(t, err)
	return res
}

func (h *harness) account(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	a, err := h.accounts.CurrentUser(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (h *harness) unusedCodes(t *testing.T, id uuid.UUID, purpose domain.Purpose) int {
	t.Helper()
	var n int
	require.NoError(t, h.store.InTx(context.Background(), func(tx repository.Tx) error {
		var err error
		n, err = tx.Codes().CountUnused(context.Background(), id, purpose)
		return err
	}))
	return n
}

func (h *harness) admin(t *testing.T) *domain.Account {
	t.Helper()
	phone := "9811111111"
	a := &domain.Account{
		ID:          uuid.New(),
		Email:       "admin@touristalert.local",
		FullName:    "Admin",
		PhoneNumber: &phone,
		IsStaff:     true,
		Verified:    true,
		Active:      true,
		CreatedAt:   h.clock.Now(),
		UpdatedAt:   h.clock.Now(),
	}
	require.NoError(t, h.store.InTx(context.Background(), func(tx repository.Tx) error {
		return tx.Accounts().Create(context.Background(), a)
	}))
	require.Equal(t, domain.RoleAdmin, a.Role)
	return a
}

func TestRegister_IssuesSingleCode(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("Ram@Example.com", "9800000001"))

	assert.Equal(t, "ram@example.com", res.Email)
	assert.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))

	a := h.account(t, res.AccountID)
	assert.False(t, a.Verified)
	assert.False(t, a.Active)
	assert.Nil(t, a.GuideProfile)
	assert.Len(t, h.sink.bySubject("Verify Your Email - Tourist Alert System"), 1)
	assert.Equal(t, 1, h.bus.count(events.AccountRegistered))
}

func TestRegister_GuideGetsPendingProfile(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))

	a := h.account(t, res.AccountID)
	require.NotNil(t, a.GuideProfile)
	assert.Equal(t, domain.GuidePending, a.GuideProfile.Status)
	assert.Equal(t, "GUIDE12345", a.GuideProfile.LicenseNumber)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		mod   func(r *domain.RegisterRequest)
		field string
	}{
		{"short phone", func(r *domain.RegisterRequest) { r.PhoneNumber = "98000" }, "phoneNumber"},
		{"bad email", func(r *domain.RegisterRequest) { r.Email = "nope" }, "email"},
		{"admin role", func(r *domain.RegisterRequest) { r.Role = domain.RoleAdmin }, "role"},
		{"numeric password", func(r *domain.RegisterRequest) { r.Password = "4815162342" }, "password"},
		{"guide without license", func(r *domain.RegisterRequest) { r.Role = domain.RoleGuide }, "licenseNumber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := touristRequest("val@example.com", "9800000003")
			tt.mod(req)
			_, err := h.accounts.Register(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrValidation)

			var derr *domain.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.field, derr.Field)
		})
	}
	assert.Empty(t, h.sink.sent)
}

func TestRegister_DuplicateNamesField(t *testing.T) {
	h := newHarness(t)
	h.register(t, guideRequest("first@example.com", "9800000004", "LIC-1"))

	tests := []struct {
		name  string
		req   *domain.RegisterRequest
		field string
	}{
		{"email", touristRequest("FIRST@example.com", "9800000005"), repository.FieldEmail},
		{"phone", touristRequest("other@example.com", "9800000004"), repository.FieldPhone},
		{"license", guideRequest("third@example.com", "9800000006", "LIC-1"), repository.FieldLicense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.accounts.Register(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrDuplicate)

			var derr *domain.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.field, derr.Field)
		})
	}
}

func TestRegister_SucceedsWhenMailFails(t *testing.T) {
	h := newHarness(t)
	h.sink.fail = true

	res := h.register(t, touristRequest("quiet@example.com", "9800000007"))
	assert.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))
}

func TestVerify_TouristBecomesActive(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	code := h.sink.lastCode(t, "ram@example.com")

	out, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	require.NoError(t, err)
	assert.True(t, out.Account.Verified)
	assert.True(t, out.Account.Active)
	require.NotNil(t, out.Tokens)
	assert.NotEmpty(t, out.Tokens.AccessToken)
	assert.NotEmpty(t, out.Tokens.RefreshToken)
	assert.Equal(t, 1, h.bus.count(events.AccountVerified))

	a := h.account(t, res.AccountID)
	assert.True(t, a.Verified)
	assert.True(t, a.Active)
}

func TestVerify_GuideStaysInactive(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	code := h.sink.lastCode(t, "sita@example.com")

	out, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	require.NoError(t, err)
	assert.Nil(t, out.Tokens)

	a := h.account(t, res.AccountID)
	assert.True(t, a.Verified)
	assert.False(t, a.Active)
	assert.Equal(t, domain.GuidePending, a.GuideProfile.Status)
	assert.Len(t, h.sink.bySubject("Guide Registration Received - Tourist Alert System"), 1)
}

func TestVerify_ExpiredCodeLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("late@example.com", "9800000008"))
	code := h.sink.lastCode(t, "late@example.com")

	h.clock.Advance(DefaultOTPTTL)
	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	require.ErrorIs(t, err, domain.ErrExpired)

	a := h.account(t, res.AccountID)
	assert.False(t, a.Verified)
	assert.False(t, a.Active)
	assert.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))
}

func TestVerify_Errors(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	code := h.sink.lastCode(t, "ram@example.com")

	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), uuid.New(), code)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, wrong)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	require.NoError(t, err)

	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestVerify_UsedCodeIsInvalid(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	code := h.sink.lastCode(t, "sita@example.com")

	// mark the code used without verifying the account
	require.NoError(t, h.store.InTx(context.Background(), func(tx repository.Tx) error {
		c, err := tx.Codes().FindLatestUnused(context.Background(), res.AccountID, domain.PurposeRegistration, secret.Hash(code))
		if err != nil {
			return err
		}
		require.NotNil(t, c)
		return tx.Codes().MarkUsed(context.Background(), c.ID)
	}))

	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestVerify_KeepsExistingGuideDecision(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	code := h.sink.lastCode(t, "sita@example.com")

	_, err := h.guides.Decide(context.Background(), admin, res.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionReject, Reason: "Expired license"})
	require.NoError(t, err)

	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, code)
	require.NoError(t, err)

	a := h.account(t, res.AccountID)
	assert.True(t, a.Verified)
	assert.False(t, a.Active)
	assert.Equal(t, domain.GuideRejected, a.GuideProfile.Status)
}

func TestResend_InvalidatesPreviousCode(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	first := h.sink.lastCode(t, "ram@example.com")

	h.clock.Advance(time.Second)
	require.NoError(t, h.accounts.ResendRegistrationOTP(context.Background(), "RAM@example.com"))
	second := h.sink.lastCode(t, "ram@example.com")
	assert.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))

	if first != second {
		_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, first)
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
	}
	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, second)
	require.NoError(t, err)
}

func TestResend_Errors(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))

	err := h.accounts.ResendRegistrationOTP(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = h.accounts.ResendRegistrationOTP(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, h.sink.lastCode(t, "ram@example.com"))
	require.NoError(t, err)

	err = h.accounts.ResendRegistrationOTP(context.Background(), "ram@example.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestResend_ConcurrentOnlyLastVerifies(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	before := len(h.sink.sent)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.accounts.ResendRegistrationOTP(context.Background(), "ram@example.com")
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	codes := []string{}
	for _, m := range h.sink.sent[before:] {
		codes = append(codes, codePattern.FindStringSubmatch(m.Body)[1])
	}
	require.Len(t, codes, 2)
	if codes[0] == codes[1] {
		t.Skip("both resends drew the same code")
	}
	require.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))

	var live, stale string
	require.NoError(t, h.store.InTx(context.Background(), func(tx repository.Tx) error {
		c, err := tx.Codes().FindLatestUnused(context.Background(), res.AccountID, domain.PurposeRegistration, secret.Hash(codes[0]))
		if c != nil {
			live, stale = codes[0], codes[1]
		} else {
			live, stale = codes[1], codes[0]
		}
		return err
	}))

	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, stale)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, live)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	tourist := h.register(t, touristRequest("ram@example.com", "9800000001"))
	guide := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))

	login := func(email, pw string) error {
		_, err := h.accounts.Login(context.Background(), &domain.LoginRequest{Email: email, Password: pw})
		return err
	}

	err := login("ram@example.com", strongPassword)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, err.Error(), "verify your email")

	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), tourist.AccountID, h.sink.lastCode(t, "ram@example.com"))
	require.NoError(t, err)
	_, err = h.accounts.VerifyRegistrationOTP(context.Background(), guide.AccountID, h.sink.lastCode(t, "sita@example.com"))
	require.NoError(t, err)

	assert.ErrorIs(t, login("ram@example.com", "wrong-password"), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, login("ghost@example.com", strongPassword), domain.ErrInvalidCredentials)

	err = login("sita@example.com", strongPassword)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, err.Error(), "pending admin verification")

	out, err := h.accounts.Login(context.Background(), &domain.LoginRequest{Email: "RAM@example.com", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, tourist.AccountID, out.Account.ID)
	assert.NotEmpty(t, out.Tokens.AccessToken)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	out, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, h.sink.lastCode(t, "ram@example.com"))
	require.NoError(t, err)

	pair, err := h.accounts.Refresh(context.Background(), out.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, out.Tokens.RefreshToken, pair.RefreshToken)
	claims, err := h.creds.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.AccountID.String(), claims.Subject)

	_, err = h.accounts.Refresh(context.Background(), out.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	require.NoError(t, h.accounts.Logout(context.Background(), out.Tokens.RefreshToken))
	_, err = h.accounts.Refresh(context.Background(), out.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func verifiedTourist(t *testing.T, h *harness, email, phone string) uuid.UUID {
	t.Helper()
	res := h.register(t, touristRequest(email, phone))
	_, err := h.accounts.VerifyRegistrationOTP(context.Background(), res.AccountID, h.sink.lastCode(t, email))
	require.NoError(t, err)
	return res.AccountID
}

func TestPasswordReset_RoundTrip(t *testing.T) {
	h := newHarness(t)
	id := verifiedTourist(t, h, "ram@example.com", "9800000001")
	ctx := context.Background()

	require.NoError(t, h.resets.ForgotPassword(ctx, "ram@example.com"))
	code := h.sink.lastCode(t, "ram@example.com")
	assert.Equal(t, 1, h.unusedCodes(t, id, domain.PurposeResetPassword))

	token, err := h.resets.VerifyResetOTP(ctx, &domain.VerifyResetOTPRequest{Email: "ram@example.com", OTP: code})
	require.NoError(t, err)
	assert.Len(t, token, 64)

	const newPassword = "Everest$Base8848"
	req := &domain.ResetPasswordRequest{
		Email:           "ram@example.com",
		ResetToken:      token,
		NewPassword:     newPassword,
		ConfirmPassword: newPassword,
	}
	require.NoError(t, h.resets.ResetPassword(ctx, req))
	assert.Equal(t, 1, h.bus.count(events.AccountPasswordReset))

	var remaining int64
	require.NoError(t, h.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		remaining, err = tx.Codes().DeleteAll(ctx, id, domain.PurposeResetPassword)
		return err
	}))
	assert.Zero(t, remaining)

	_, err = h.accounts.Login(ctx, &domain.LoginRequest{Email: "ram@example.com", Password: newPassword})
	require.NoError(t, err)
	_, err = h.accounts.Login(ctx, &domain.LoginRequest{Email: "ram@example.com", Password: strongPassword})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	err = h.resets.ResetPassword(ctx, &domain.ResetPasswordRequest{
		Email:           "ram@example.com",
		ResetToken:      token,
		NewPassword:     "Annapurna!8091",
		ConfirmPassword: "Annapurna!8091",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestForgotPassword_UnknownEmailLooksSuccessful(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.resets.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, h.sink.sent)
}

func TestForgotPassword_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	id := verifiedTourist(t, h, "ram@example.com", "9800000001")
	h.sink.fail = true

	err := h.resets.ForgotPassword(context.Background(), "ram@example.com")
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, 1, h.unusedCodes(t, id, domain.PurposeResetPassword))
}

func TestForgotPassword_ReplacesPriorCode(t *testing.T) {
	h := newHarness(t)
	id := verifiedTourist(t, h, "ram@example.com", "9800000001")
	ctx := context.Background()

	require.NoError(t, h.resets.ForgotPassword(ctx, "ram@example.com"))
	first := h.sink.lastCode(t, "ram@example.com")
	h.clock.Advance(time.Second)
	require.NoError(t, h.resets.ForgotPassword(ctx, "ram@example.com"))
	second := h.sink.lastCode(t, "ram@example.com")
	assert.Equal(t, 1, h.unusedCodes(t, id, domain.PurposeResetPassword))

	if first != second {
		_, err := h.resets.VerifyResetOTP(ctx, &domain.VerifyResetOTPRequest{Email: "ram@example.com", OTP: first})
		assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	}
}

func TestVerifyResetOTP_Errors(t *testing.T) {
	h := newHarness(t)
	verifiedTourist(t, h, "ram@example.com", "9800000001")
	ctx := context.Background()

	_, err := h.resets.VerifyResetOTP(ctx, &domain.VerifyResetOTPRequest{Email: "ghost@example.com", OTP: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)

	require.NoError(t, h.resets.ForgotPassword(ctx, "ram@example.com"))
	code := h.sink.lastCode(t, "ram@example.com")

	h.clock.Advance(DefaultOTPTTL + time.Second)
	_, err = h.resets.VerifyResetOTP(ctx, &domain.VerifyResetOTPRequest{Email: "ram@example.com", OTP: code})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
}

func TestResetPassword_Errors(t *testing.T) {
	h := newHarness(t)
	verifiedTourist(t, h, "ram@example.com", "9800000001")
	ctx := context.Background()

	require.NoError(t, h.resets.ForgotPassword(ctx, "ram@example.com"))
	token, err := h.resets.VerifyResetOTP(ctx, &domain.VerifyResetOTPRequest{Email: "ram@example.com", OTP: h.sink.lastCode(t, "ram@example.com")})
	require.NoError(t, err)

	err = h.resets.ResetPassword(ctx, &domain.ResetPasswordRequest{
		Email: "ram@example.com", ResetToken: token, NewPassword: "Everest$Base8848", ConfirmPassword: "Everest$Base8849",
	})
	assert.ErrorIs(t, err, domain.ErrMismatch)

	err = h.resets.ResetPassword(ctx, &domain.ResetPasswordRequest{
		Email: "ram@example.com", ResetToken: token, NewPassword: "short", ConfirmPassword: "short",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = h.resets.ResetPassword(ctx, &domain.ResetPasswordRequest{
		Email: "ram@example.com", ResetToken: "deadbeef", NewPassword: "Everest$Base8848", ConfirmPassword: "Everest$Base8848",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)

	h.clock.Advance(DefaultResetTokenTTL)
	err = h.resets.ResetPassword(ctx, &domain.ResetPasswordRequest{
		Email: "ram@example.com", ResetToken: token, NewPassword: "Everest$Base8848", ConfirmPassword: "Everest$Base8848",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestGuideApproval_Scenario(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()

	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	_, err := h.accounts.VerifyRegistrationOTP(ctx, res.AccountID, h.sink.lastCode(t, "sita@example.com"))
	require.NoError(t, err)

	pending, err := h.guides.ListPendingGuides(ctx, admin, domain.Page{Limit: 20})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, res.AccountID, pending[0].ID)

	guide, err := h.guides.Decide(ctx, admin, res.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	require.NoError(t, err)
	assert.True(t, guide.Active)
	assert.Equal(t, domain.GuideVerified, guide.GuideProfile.Status)

	a := h.account(t, res.AccountID)
	assert.True(t, a.Active)
	assert.Equal(t, domain.GuideVerified, a.GuideProfile.Status)
	assert.Len(t, h.sink.bySubject("Guide Account Approved - Tourist Alert System"), 1)
	assert.Equal(t, 1, h.bus.count(events.GuideApproved))

	_, err = h.guides.Decide(ctx, admin, res.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Contains(t, err.Error(), "Current status: VERIFIED")
	assert.True(t, h.account(t, res.AccountID).Active)
	assert.Len(t, h.sink.bySubject("Guide Account Approved - Tourist Alert System"), 1)

	pending, err = h.guides.ListPendingGuides(ctx, admin, domain.Page{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = h.accounts.Login(ctx, &domain.LoginRequest{Email: "sita@example.com", Password: strongPassword})
	assert.NoError(t, err)
}

func TestGuideReject(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))

	guide, err := h.guides.Decide(ctx, admin, res.AccountID, &domain.GuideDecisionRequest{Action: "REJECT", Reason: "License could not be confirmed"})
	require.NoError(t, err)
	assert.False(t, guide.Active)
	assert.Equal(t, domain.GuideRejected, guide.GuideProfile.Status)

	mails := h.sink.bySubject("Guide Application Update - Tourist Alert System")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Body, "License could not be confirmed")
	assert.Equal(t, 1, h.bus.count(events.GuideRejected))

	_, err = h.guides.Decide(ctx, admin, res.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestGuideDecide_Errors(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()
	tourist := h.register(t, touristRequest("ram@example.com", "9800000001"))
	guide := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	touristAccount := h.account(t, tourist.AccountID)

	_, err := h.guides.Decide(ctx, touristAccount, guide.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.guides.Decide(ctx, nil, guide.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.guides.Decide(ctx, admin, tourist.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.guides.Decide(ctx, admin, uuid.New(), &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.guides.Decide(ctx, admin, guide.AccountID, &domain.GuideDecisionRequest{Action: "suspend"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.guides.Decide(ctx, admin, guide.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove, Reason: "looks fine"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, domain.GuidePending, h.account(t, guide.AccountID).GuideProfile.Status)
	assert.Empty(t, h.sink.bySubject("Guide Account Approved - Tourist Alert System"))
}

func TestListGuides(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()

	first := h.register(t, guideRequest("a@example.com", "9800000011", "LIC-A"))
	h.clock.Advance(time.Minute)
	second := h.register(t, guideRequest("b@example.com", "9800000012", "LIC-B"))
	h.register(t, touristRequest("c@example.com", "9800000013"))

	_, err := h.guides.Decide(ctx, admin, first.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	require.NoError(t, err)

	all, err := h.guides.ListGuides(ctx, admin, "", domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.AccountID, all[0].ID)

	verified, err := h.guides.ListGuides(ctx, admin, "verified", domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, first.AccountID, verified[0].ID)

	_, err = h.guides.ListGuides(ctx, admin, "bogus", domain.Page{Limit: 10})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := h.guides.GetGuide(ctx, admin, second.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "LIC-B", got.GuideProfile.LicenseNumber)

	_, err = h.guides.GetGuide(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.guides.ListGuides(ctx, h.account(t, second.AccountID), "", domain.Page{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGuideDecide_ConcurrentOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		req := &domain.GuideDecisionRequest{Action: domain.ActionApprove}
		if i%2 == 1 {
			req = &domain.GuideDecisionRequest{Action: domain.ActionReject, Reason: "Duplicate application"}
		}
		wg.Add(1)
		go func(i int, req *domain.GuideDecisionRequest) {
			defer wg.Done()
			_, errs[i] = h.guides.Decide(ctx, admin, res.AccountID, req)
		}(i, req)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, successes)

	a := h.account(t, res.AccountID)
	assert.True(t, a.GuideProfile.Status.Terminal())
	assert.Equal(t, a.GuideProfile.Status == domain.GuideVerified, a.Active)
	assert.Equal(t, 1, h.bus.count(events.GuideApproved)+h.bus.count(events.GuideRejected))
	assert.Len(t, append(
		h.sink.bySubject("Guide Account Approved - Tourist Alert System"),
		h.sink.bySubject("Guide Application Update - Tourist Alert System")...,
	), 1)
}

func TestGuideDecide_SucceedsWhenMailFails(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	ctx := context.Background()
	res := h.register(t, guideRequest("sita@example.com", "9800000002", "GUIDE12345"))
	h.sink.fail = true
	logs := captureLogs(t)

	guide, err := h.guides.Decide(ctx, admin, res.AccountID, &domain.GuideDecisionRequest{Action: domain.ActionApprove})
	require.NoError(t, err)
	assert.True(t, guide.Active)
	assert.Equal(t, domain.GuideVerified, h.account(t, res.AccountID).GuideProfile.Status)
	assert.Equal(t, 1, h.bus.count(events.GuideApproved))
	assert.Contains(t, logs.String(), "Guide decision email not delivered")
	assert.Contains(t, logs.String(), res.AccountID.String())
}

func TestResend_SucceedsWhenMailFails(t *testing.T) {
	h := newHarness(t)
	res := h.register(t, touristRequest("ram@example.com", "9800000001"))
	h.sink.fail = true
	logs := captureLogs(t)

	require.NoError(t, h.accounts.ResendRegistrationOTP(context.Background(), "ram@example.com"))
	assert.Equal(t, 1, h.unusedCodes(t, res.AccountID, domain.PurposeRegistration))
	assert.Contains(t, logs.String(), "Registration OTP not delivered")
	assert.Contains(t, logs.String(), res.AccountID.String())
}
