package admission

// tokenBucketScript implements the lazy token-bucket refill-and-take
// algorithm described in SPEC_FULL.md §4.4, as a single atomic script so
// the refill and the take can never race.
//
// KEYS: [1] tokens_key, [2] timestamp_key
// ARGV: [1] capacity, [2] rate_per_second, [3] now_ms
// Returns: {acquired (1|0), tokens_remaining*1000 (fixed-point)}
const tokenBucketScript = `
	local tokens_key = KEYS[1]
	local ts_key = KEYS[2]

	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now_ms = tonumber(ARGV[3])

	local tokens = tonumber(redis.call('GET', tokens_key))
	local last = tonumber(redis.call('GET', ts_key))

	if tokens == nil then
		tokens = capacity
	end
	if last == nil then
		last = now_ms
	end

	local elapsed_seconds = (now_ms - last) / 1000
	if elapsed_seconds < 0 then
		elapsed_seconds = 0
	end

	tokens = math.min(capacity, tokens + elapsed_seconds * rate)

	local acquired = 0
	if tokens >= 1 then
		tokens = tokens - 1
		acquired = 1
	end

	redis.call('SET', tokens_key, tokens)
	redis.call('SET', ts_key, now_ms)

	return {acquired, math.floor(tokens * 1000)}
`
