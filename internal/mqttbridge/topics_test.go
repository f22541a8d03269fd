package mqttbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathBuilder_DeviceSubtopic(t *testing.T) {
	pb := PathBuilder{OwnerID: "alice"}
	assert.Equal(t, "PUBLIC_UNIOT/users/alice/devices/dead1234/status", pb.DeviceSubtopic("dead1234", "status"))
}

func TestPathBuilder_GroupSubtopic(t *testing.T) {
	pb := PathBuilder{OwnerID: "alice"}
	assert.Equal(t, "PUBLIC_UNIOT/users/alice/groups/home/event/1", pb.GroupSubtopic("home", "event/1"))
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "device:dead1234", ClientID("dead1234"))
}

func TestIsTopicMatch_SingleLevelWildcard(t *testing.T) {
	assert.True(t, IsTopicMatch("a/+/c", "a/b/c"))
	assert.False(t, IsTopicMatch("a/+/c", "a/b/c/d"))
}

func TestIsTopicMatch_MultiLevelWildcard(t *testing.T) {
	assert.True(t, IsTopicMatch("a/#", "a/b/c/d"))
	assert.True(t, IsTopicMatch("a/#", "a"))
}

func TestIsTopicMatch_ExactMatch(t *testing.T) {
	assert.True(t, IsTopicMatch("a/b/c", "a/b/c"))
	assert.False(t, IsTopicMatch("a/b/c", "a/b/d"))
}

func TestIsTopicMatch_NoWildcardLengthMismatch(t *testing.T) {
	assert.False(t, IsTopicMatch("a/b", "a/b/c"))
}
