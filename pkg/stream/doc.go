/*
Package stream turns a chunked newline-delimited JSON byte stream into step events.

Framer splits bytes into complete records regardless of where chunk boundaries
fall. Decode parses one record, accepting the backend envelope

	{"node": "eval_clarity", "data": {"clarity_score": 4}}

as well as the flat form {"node": "eval_clarity", "clarity_score": 4}.
Pump glues a reader, a Framer and Decode together.
*/
package stream
