package backend

import jsoniter "github.com/json-iterator/go"

// json is shared by every decode on the wire path.
var json = jsoniter.ConfigCompatibleWithStandardLibrary
