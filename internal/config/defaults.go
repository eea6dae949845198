package config

// ApplyDefaults sets the baseline configuration. YAML and environment
// overrides are applied on top of these values.
func ApplyDefaults(cfg *Config) {
	// --- Log ---
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	// --- Stats API ---
	cfg.StatsAPI.BaseURL = "https://stats.nba.com/stats"
	cfg.StatsAPI.LeagueID = "00"
	cfg.StatsAPI.Season = "2023-24"
	cfg.StatsAPI.SeasonType = "Regular Season"
	cfg.StatsAPI.OnlyCurrentSeason = true
	cfg.StatsAPI.MaxRequestsPerSecond = 0
	cfg.StatsAPI.BurstRequests = 1

	// --- Fetcher ---
	cfg.Fetcher.DelayMilliseconds = 600
	cfg.Fetcher.TimeoutSeconds = 30
	cfg.Fetcher.FailurePolicy = "skip"

	// --- Checkpoint ---
	cfg.Checkpoint.Backend = "file"
	cfg.Checkpoint.Interval = 25
	cfg.Checkpoint.RecordsPath = "player_stats_checkpoint.csv"
	cfg.Checkpoint.ProcessedPath = "processed_players_checkpoint.json"
	cfg.Checkpoint.RedisKeyPrefix = "glb:checkpoint"

	// --- Output ---
	cfg.Output.Path = "nba_player_game_logs.csv"
	cfg.Output.Rolling.Path = "nba_player_rolling_averages.csv"
	cfg.Output.Rolling.Window = 10
	cfg.Output.S3.Region = "us-east-1"
	cfg.Output.S3.UseSSL = true

	// --- Metrics ---
	cfg.Metrics.JobName = "gamelog_backfill"
}
