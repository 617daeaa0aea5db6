package redis

const (
	// incrementUsageScript atomically increments a day's minutes and records
	// first-seen dates in insertion order
	incrementUsageScript = `
local usage_key = KEYS[1]     -- screentimer:usage
local order_key = KEYS[2]     -- screentimer:usage:order

local date = ARGV[1]
local minutes = tonumber(ARGV[2])

local current = redis.call('HGET', usage_key, date)
if not current then
  redis.call('RPUSH', order_key, date)
elseif not tonumber(current) then
  -- Corrupt value: restart the day from zero
  redis.call('HSET', usage_key, date, 0)
end

return redis.call('HINCRBY', usage_key, date, minutes)
`

	// mergeUsageScript raises a day's minutes to ARGV[2] if that is higher
	mergeUsageScript = `
local usage_key = KEYS[1]     -- screentimer:usage
local order_key = KEYS[2]     -- screentimer:usage:order

local date = ARGV[1]
local minutes = tonumber(ARGV[2])

local current = redis.call('HGET', usage_key, date)
if not current then
  redis.call('RPUSH', order_key, date)
  redis.call('HSET', usage_key, date, minutes)
  return minutes
end

local existing = tonumber(current)
if not existing or existing < minutes then
  redis.call('HSET', usage_key, date, minutes)
  return minutes
end

return existing
`
)
