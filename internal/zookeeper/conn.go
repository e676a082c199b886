// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 封装了底层的 ZooKeeper 连接。
type Conn struct {
	*zk.Conn
}

// Connect 建立到 ZooKeeper 集群的连接。
func Connect(addrs []string, sessionTimeout time.Duration) (*Conn, error) {
	c, _, err := zk.Connect(addrs, sessionTimeout)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: c}, nil
}

// Close 关闭连接，会话关联的所有临时节点随之失效。
func (c *Conn) Close() {
	c.Conn.Close()
}
