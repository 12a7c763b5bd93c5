// Package requirements holds the frozen, process-wide catalog of the five
// compliance requirements: their questions, grading rubrics, and curated
// BM25 query keyword lists. These are magic strings that are part of the
// system's behavior and must be preserved verbatim — ground truth is
// original_source/backend/app/pipeline/compliance_analyzer.py's
// COMPLIANCE_REQUIREMENTS and app/pipeline/retriever.py's REQUIREMENT_QUERIES.
package requirements

import "github.com/veridoc-ai/compliance-rag/internal/domain/entities"

// IDs of the five frozen requirements, in catalog order.
const (
	PasswordManagement = "password_management"
	ITAssetManagement  = "it_asset_management"
	SecurityTraining   = "security_training"
	TLSEncryption      = "tls_encryption"
	AuthNAuthZ         = "authn_authz"
)

// OrderedIDs returns the five requirement ids in the fixed catalog order
// the orchestrator must analyze them in, sequentially rather than fanned out.
func OrderedIDs() []string {
	return []string{
		PasswordManagement,
		ITAssetManagement,
		SecurityTraining,
		TLSEncryption,
		AuthNAuthZ,
	}
}

// catalog is the process-wide immutable configuration.
var catalog = map[string]entities.Requirement{
	PasswordManagement: {
		ID: PasswordManagement,
		ComplianceQuestion: "Password Management. The contract must require a documented password standard covering password length/strength, prohibition of default and known-compromised passwords, secure storage (no plaintext; salted hashing if stored), brute-force protections (lockout/rate limiting), prohibition on password sharing, vaulting of privileged credentials/recovery codes, and time-based rotation for break-glass credentials. Based on the contract language and exhibits, what is the compliance state for Password Management?",
		Rubric: `Evaluate Password Management compliance per assignment requirements.

FULLY COMPLIANT if contract explicitly requires ALL of:
- Documented password standard (policy document)
- Password length/strength requirements (e.g., >=12 chars, complexity)
- Prohibition of default/known-compromised passwords
- Secure storage (no plaintext; salted hashing if stored)
- Brute-force protections (lockout/rate limiting)
- Prohibition on password sharing
- Vaulting of privileged credentials/recovery codes (e.g., break-glass accounts)
- Time-based rotation for break-glass credentials

PARTIALLY COMPLIANT if contract addresses some but not all requirements (e.g., mentions passwords but lacks vaulting or brute-force protection).

NON-COMPLIANT if no password management requirements found in evidence.`,
		BM25Query: []string{
			"password", "passwords", "credential", "credentials",
			"authentication", "authenticate", "passphrase",
			"complexity", "length", "characters", "uppercase", "lowercase",
			"special character", "numeric", "alphanumeric",
			"rotation", "expire", "expiration", "change", "reset",
			"salted hash", "hashing", "bcrypt", "pbkdf2",
			"lockout", "rate limiting", "brute force", "attempts",
			"multi-factor", "MFA", "2FA", "two-factor",
			"break-glass", "emergency access", "vault", "secret management",
		},
	},
	ITAssetManagement: {
		ID: ITAssetManagement,
		ComplianceQuestion: "IT Asset Management. The contract must require an in-scope asset inventory (including cloud accounts/subscriptions, workloads, databases, security tooling), define minimum inventory fields, require at least quarterly reconciliation/review, and require secure configuration baselines with drift remediation and prohibition of insecure defaults. Based on the contract language and exhibits, what is the compliance state for IT Asset Management?",
		Rubric: `Evaluate IT Asset Management compliance per assignment requirements.

FULLY COMPLIANT if contract explicitly requires ALL of:
- In-scope asset inventory (cloud accounts/subscriptions, workloads, databases, security tooling)
- Defined minimum inventory fields (what data must be tracked per asset)
- At least quarterly reconciliation/review of asset inventory
- Secure configuration baselines (hardening standards)
- Drift remediation (detect and fix configuration drift)
- Prohibition of insecure defaults

PARTIALLY COMPLIANT if contract addresses some but not all requirements (e.g., mentions inventory but no quarterly review or drift remediation).

NON-COMPLIANT if no IT asset management requirements found in evidence.`,
		BM25Query: []string{
			"asset", "assets", "inventory", "inventories",
			"hardware", "software", "device", "devices",
			"tracking", "monitor", "monitoring", "management",
			"CMDB", "configuration management", "discovery",
			"lifecycle", "provisioning", "decommission",
			"quarterly reconciliation", "reconcile", "audit trail",
			"drift remediation", "compliance scan", "baseline",
			"patch management", "vulnerability", "update",
		},
	},
	SecurityTraining: {
		ID: SecurityTraining,
		ComplianceQuestion: "Security Training & Background Checks. The contract must require security awareness training on hire and at least annually, and background screening for personnel with access to Company Data to the extent permitted by law, including maintaining a screening policy and attestation/evidence. Based on the contract language and exhibits, what is the compliance state for Security Training and Background Checks?",
		Rubric: `Evaluate Security Training & Background Checks compliance per assignment requirements.

FULLY COMPLIANT if contract explicitly requires ALL of:
- Security awareness training on hire (initial onboarding training)
- Security awareness training at least annually (ongoing/refresher training)
- Background screening for personnel with access to Company Data
- Background screening to the extent permitted by law (legal compliance clause)
- Screening policy maintained by vendor
- Attestation/evidence of training and screening (documentation requirements)

PARTIALLY COMPLIANT if contract addresses some but not all requirements (e.g., mentions training but no frequency, or screening but no policy/attestation).

NON-COMPLIANT if no security training or background check requirements found in evidence.`,
		BM25Query: []string{
			"training", "awareness", "education", "course",
			"security awareness", "cybersecurity training",
			"phishing", "social engineering", "incident response",
			"background check", "background screening", "screening",
			"criminal history", "employment verification",
			"security clearance", "vetting", "personnel security",
			"onboarding", "annual training", "refresher",
			"attestation", "acknowledgment", "certification",
			"evidence", "completion record", "certificate",
		},
	},
	TLSEncryption: {
		ID: TLSEncryption,
		ComplianceQuestion: "Data in Transit Encryption. The contract must require encryption of Company Data in transit using TLS 1.2+ (preferably TLS 1.3 where feasible) for Company-to-Service traffic, administrative access pathways, and applicable Service-to-Subprocessor transfers, with certificate management and avoidance of insecure cipher suites. Based on the contract language and exhibits, what is the compliance state for Data in Transit Encryption?",
		Rubric: `Evaluate Data in Transit Encryption compliance per assignment requirements.

FULLY COMPLIANT if contract explicitly requires ALL of:
- Encryption of Company Data in transit
- TLS 1.2 or higher (TLS 1.2+ minimum, TLS 1.3 preferred where feasible)
- Coverage for Company-to-Service traffic (client to vendor)
- Coverage for administrative access pathways (admin consoles, management interfaces)
- Coverage for Service-to-Subprocessor transfers (if applicable/disclosed)
- Certificate management (renewal, expiration, revocation procedures)
- Avoidance of insecure cipher suites (prohibited weak ciphers)

PARTIALLY COMPLIANT if contract addresses some but not all requirements (e.g., mentions TLS but no version, or lacks certificate management).

NON-COMPLIANT if no data in transit encryption requirements found in evidence.`,
		BM25Query: []string{
			"TLS", "SSL", "transport layer security",
			"encryption", "encrypted", "encrypt",
			"in transit", "data in transit", "transmission",
			"TLS 1.2", "TLS 1.3", "protocol version",
			"cipher suite", "cipher", "encryption algorithm",
			"certificate", "cert", "CA", "certificate authority",
			"cert management", "certificate lifecycle", "renewal",
			"PKI", "public key infrastructure",
			"HTTPS", "secure channel", "encrypted channel",
		},
	},
	AuthNAuthZ: {
		ID: AuthNAuthZ,
		ComplianceQuestion: "Network Authentication & Authorization Protocols. The contract must specify the authentication mechanisms (e.g., SAML SSO for users, OAuth/token-based for APIs), require MFA for privileged/production access, require secure admin pathways (bastion/secure gateway) with session logging, and require RBAC authorization. Based on the contract language and exhibits, what is the compliance state for Network Authentication and Authorization Protocols?",
		Rubric: `Evaluate Network Authentication & Authorization compliance per assignment requirements.

FULLY COMPLIANT if contract explicitly requires ALL of:
- Specified authentication mechanisms (e.g., SAML SSO for users, OAuth/token-based for APIs)
- MFA (multi-factor authentication) for privileged/production access
- Secure admin pathways (bastion host, secure gateway, jump server)
- Session logging (audit trail of access sessions)
- RBAC (role-based access control) authorization

PARTIALLY COMPLIANT if contract addresses some but not all requirements (e.g., mentions MFA but no RBAC, or no session logging).

NON-COMPLIANT if no authentication or authorization requirements found in evidence.`,
		BM25Query: []string{
			"authentication", "authorization", "access control",
			"identity", "IAM", "identity management",
			"SSO", "single sign-on", "federated",
			"SAML", "OAuth", "OpenID", "OIDC",
			"RBAC", "role-based", "access control",
			"least privilege", "privilege", "permissions",
			"session", "session management", "timeout",
			"session logging", "audit log", "access log",
			"bastion", "jump host", "privileged access",
			"MFA", "multi-factor", "two-factor",
		},
	},
}

// Get returns the requirement definition for id, or false if id is not one
// of the five frozen requirement ids.
func Get(id string) (entities.Requirement, bool) {
	r, ok := catalog[id]
	return r, ok
}

// All returns the five requirements in catalog order.
func All() []entities.Requirement {
	ids := OrderedIDs()
	out := make([]entities.Requirement, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog[id])
	}
	return out
}
