package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cast"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

// UUIDint64 returns a cluster-safe int64 identifier. The node id can be
// set through WAPANEL_NODE_ID when running multiple instances.
func UUIDint64() int64 {
	snowflakeOnce.Do(func() {
		nodeID := cast.ToInt64(os.Getenv("WAPANEL_NODE_ID"))
		node, err := snowflake.NewNode(nodeID)
		if err != nil {
			node, _ = snowflake.NewNode(0)
		}
		snowflakeNode = node
	})
	return snowflakeNode.Generate().Int64()
}

func GetSecretSalt() string {
	if salt := os.Getenv("WAPANEL_SECRET_SALT"); salt != "" {
		return salt
	}
	return "wapanel-salt"
}

func Sha256HashWithSalt(src string, salt string) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}
