// Package keys centralises every key name written to the shared TTL store.
//
// Names here are read by other services that share the same Redis, so they
// must not change:
//
//	email:verify:{address}                one-time code (email and SMS)
//	{codeKey}:attempts                    code attempt counter
//	email:verified:{address}              email verified flag
//	phone:verified:{address}              phone verified flag
//	image:code:{identity}:{uuid}          image challenge code
//	image:code:attempts:{key}             image challenge attempts
//	image_refresh_count:{hash(identity)}  image refresh counter
//	user:session:{userId}:{sessionId}     session record
//	session:map:{sessionId}               session reverse index
//	login:cooldown:{userId}               login cooldown
package keys

import "strconv"

const (
	codePrefix          = "email:verify:"
	attemptsSuffix      = ":attempts"
	emailVerifiedPrefix = "email:verified:"
	phoneVerifiedPrefix = "phone:verified:"
	emailCooldownPrefix = "email:cooldown:"
	smsCooldownPrefix   = "sms:cooldown:"
	imageCodePrefix     = "image:code:"
	imageAttemptsPrefix = "image:code:attempts:"
	imageRefreshPrefix  = "image_refresh_count:"
	sessionPrefix       = "user:session:"
	sessionMapPrefix    = "session:map:"
	loginCooldownPrefix = "login:cooldown:"
)

// Code is the one-time code key for an email address or phone number.
func Code(address string) string { return codePrefix + address }

// Attempts is the attempt counter paired with a code key.
func Attempts(codeKey string) string { return codeKey + attemptsSuffix }

func EmailVerified(address string) string { return emailVerifiedPrefix + address }
func PhoneVerified(address string) string { return phoneVerifiedPrefix + address }

func EmailCooldown(address string) string { return emailCooldownPrefix + address }
func SMSCooldown(address string) string   { return smsCooldownPrefix + address }

// ImageChallengeID is the opaque challenge id handed to the client. The
// stored key is ImageCode(id).
func ImageChallengeID(identity, suffix string) string { return identity + ":" + suffix }

func ImageCode(challengeID string) string     { return imageCodePrefix + challengeID }
func ImageAttempts(challengeID string) string { return imageAttemptsPrefix + challengeID }

// ImageRefresh is the per-identity refresh counter.
func ImageRefresh(identity string) string {
	return imageRefreshPrefix + strconv.FormatInt(int64(StringHash(identity)), 10)
}

func Session(userID, sessionID string) string { return sessionPrefix + userID + ":" + sessionID }

// SessionPattern matches every session key of a user. userID must already be
// glob-escaped.
func SessionPattern(escapedUserID string) string { return sessionPrefix + escapedUserID + ":*" }

// SessionIDFromKey extracts the session id from a Session key of userID.
func SessionIDFromKey(userID, key string) (string, bool) {
	prefix := sessionPrefix + userID + ":"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", false
	}
	return key[len(prefix):], true
}

func SessionMap(sessionID string) string { return sessionMapPrefix + sessionID }
func LoginCooldown(userID string) string { return loginCooldownPrefix + userID }

// StringHash is the 31-multiplier polynomial hash over UTF-16 code units with
// int32 wraparound. Peers sharing the store compute refresh counter keys the
// same way.
func StringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}
