// Package challenge classifies and resolves account checkpoints: email and
// SMS verification, consent screens, and the captcha wall. Classification
// is table-driven over the server's step names with contact-point and
// context fallbacks, so new step names degrade to an explicit unknown
// instead of a wrong guess.
package challenge
