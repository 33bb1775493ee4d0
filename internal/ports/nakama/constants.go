package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickMatch = "quick_match"

	// MatchNameWhist is the authoritative match handler name registered with Nakama.
	MatchNameWhist = "whist_match"

	// MatchLabelKey_OpenSeats is the label key advertising free seats.
	MatchLabelKey_OpenSeats = "open"
)
