package mailer

import (
	"fmt"
	"strings"
	"time"
)

const signature = "\nBest regards,\nTourist Alert System Team\n"

func RegistrationOTP(fullName, code string, ttl time.Duration) (subject, body string) {
	subject = "Verify Your Email - Tourist Alert System"
	body = fmt.Sprintf(`Hi %s,

Welcome to Tourist Alert System!

Your email verification code is: %s

This code will expire in %s.

If you didn't request this, please ignore this email.
`, fullName, code, minutes(ttl)) + signature
	return subject, body
}

func ResetPasswordOTP(fullName, code string, ttl time.Duration) (subject, body string) {
	subject = "Password Reset OTP - Tourist Alert System"
	body = fmt.Sprintf(`Hi %s,

You requested to reset your password.

Your password reset code is: %s

This code will expire in %s.

If you didn't request this, please ignore this email and your password will remain unchanged.
`, fullName, code, minutes(ttl)) + signature
	return subject, body
}

func GuideApplicationReceived(fullName, licenseNumber, issuedBy string, submitted time.Time) (subject, body string) {
	subject = "Guide Registration Received - Tourist Alert System"
	body = fmt.Sprintf(`Hi %s,

Thank you for registering as a guide with Tourist Alert System!

Your application has been received and is under review by our admin team.

Application Details:
License Number: %s
Issued By: %s
Status: PENDING VERIFICATION
Submitted: %s

Our admin team will review your application within 1-2 business days.
You will receive an email once your account is verified.
`, fullName, licenseNumber, issuedBy, submitted.Format("January 02, 2006 at 03:04 PM")) + signature
	return subject, body
}

func GuideApproved(fullName, email, licenseNumber string) (subject, body string) {
	subject = "Guide Account Approved - Tourist Alert System"
	body = fmt.Sprintf(`Hi %s,

Great news! Your guide account has been approved!

Application Details:
Email: %s
License Number: %s
Status: VERIFIED

You can now login with your registered email and password.

Thank you for joining Tourist Alert System!
`, fullName, email, licenseNumber) + signature
	return subject, body
}

func GuideRejected(fullName, email, licenseNumber, reason string) (subject, body string) {
	subject = "Guide Application Update - Tourist Alert System"
	var b strings.Builder
	fmt.Fprintf(&b, `Hi %s,

Thank you for your interest in becoming a guide with Tourist Alert System.

After careful review, we regret to inform you that we cannot approve your application at this time.
`, fullName)
	if reason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", reason)
	}
	fmt.Fprintf(&b, `
Application Details:
Email: %s
License Number: %s
Status: NOT APPROVED

If you believe this is an error or would like to reapply in the future, please contact our support team.
`, email, licenseNumber)
	b.WriteString(signature)
	return subject, b.String()
}

func minutes(d time.Duration) string {
	m := int(d.Minutes())
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
