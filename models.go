package sloth

// Account is the persisted account record. The id is assigned once from the
// meta counter and never reused. LoginToken holds the signed form of the
// latest entry code; SessionToken and RefreshToken hold the raw opaque
// secrets of the single active session. Records are stored as JSON values in
// the key-value store, keyed by email with an id -> email secondary index.
type Account struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	CreatedAt    int64  `json:"createdAt"`
	LoginToken   string `json:"loginToken,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

// MetaData is the singleton counter record. LatestAccID starts at -1 and is
// incremented by exactly one per account, atomically with the account write.
type MetaData struct {
	LatestAccID int64 `json:"latestAccId"`
}

// Session is a freshly minted signed token pair. Only the signed forms leave
// the server; the raw secrets they embed live on the Account record.
type Session struct {
	SessionToken string `json:"sessionToken"`
	RefreshToken string `json:"refreshToken"`
}
