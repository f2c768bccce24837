/*
Package metrics provides Prometheus metrics and health reporting for herald.

Metrics are package-level collectors registered with the default Prometheus
registry at init and exposed through Handler on /metrics.

# Metric Categories

Registry:
  - herald_bots_total{status}: bots by lifecycle state (set by the manager's collector)
  - herald_servers_total: configured servers

Bot lifecycle:
  - herald_session_starts_total{result}: success or failure of Start
  - herald_session_start_duration_seconds: time to bring a bot online
  - herald_session_updates_total{result}: periodic session refresh outcomes
  - herald_bot_restarts_total: restarts requested by session engines
  - herald_bot_friend_count{bot_id}: last observed following count

Pool, events and API:
  - herald_pool_tasks_total
  - herald_events_dropped_total{stage}: events lost to a full queue or subscriber
  - herald_api_requests_total{route,status}
  - herald_api_request_duration_seconds{route}
  - herald_component_healthy{component}: mirror of the health registry

# Health

SetComponent and SetComponentErr record per-component health. GetHealth is
unhealthy when any reported component is; GetReadiness requires storage,
registry and api to have reported healthy. HealthHandler, ReadyHandler and
LivenessHandler serve them as JSON.

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SessionStartDuration)
*/
package metrics
