package redis

const (
	// saveFeaturesScript replaces a day's summary and indexes the date
	saveFeaturesScript = `
local features_key = KEYS[1]  -- workdigest:features:{date}
local index_key = KEYS[2]     -- workdigest:features:dates

local date = ARGV[1]
local payload = ARGV[2]

redis.call('SET', features_key, payload)
redis.call('SADD', index_key, date)

return 'OK'
`
)
