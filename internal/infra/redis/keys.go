package redis

const keyPrefix = "quiz:"

func dailyKey(day string) string {
	return keyPrefix + "daily:" + day
}

func profileKeyPrefix() string {
	return keyPrefix + "profile:"
}

func profileKey(id string) string {
	return profileKeyPrefix() + id
}

func leaderboardKey() string {
	return keyPrefix + "leaderboard"
}

func matchKeyPrefix() string {
	return keyPrefix + "match:"
}

func matchKey(id string) string {
	return matchKeyPrefix() + id
}

func matchCodeKey(code string) string {
	return keyPrefix + "match-code:" + code
}

func matchHostKey(playerID string) string {
	return keyPrefix + "match-host:" + playerID
}

func waitingMatchesKey() string {
	return keyPrefix + "matches:waiting"
}

func matchChannel(id string) string {
	return keyPrefix + "match-updates:" + id
}

