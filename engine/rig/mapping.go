package rig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

type HumanBone string

const (
	Hips          HumanBone = "Hips"
	Spine         HumanBone = "Spine"
	Chest         HumanBone = "Chest"
	UpperChest    HumanBone = "UpperChest"
	Neck          HumanBone = "Neck"
	Head          HumanBone = "Head"
	Jaw           HumanBone = "Jaw"
	LeftEye       HumanBone = "LeftEye"
	RightEye      HumanBone = "RightEye"
	LeftShoulder  HumanBone = "LeftShoulder"
	LeftUpperArm  HumanBone = "LeftUpperArm"
	LeftLowerArm  HumanBone = "LeftLowerArm"
	LeftHand      HumanBone = "LeftHand"
	RightShoulder HumanBone = "RightShoulder"
	RightUpperArm HumanBone = "RightUpperArm"
	RightLowerArm HumanBone = "RightLowerArm"
	RightHand     HumanBone = "RightHand"
	LeftUpperLeg  HumanBone = "LeftUpperLeg"
	LeftLowerLeg  HumanBone = "LeftLowerLeg"
	LeftFoot      HumanBone = "LeftFoot"
	LeftToes      HumanBone = "LeftToes"
	RightUpperLeg HumanBone = "RightUpperLeg"
	RightLowerLeg HumanBone = "RightLowerLeg"
	RightFoot     HumanBone = "RightFoot"
	RightToes     HumanBone = "RightToes"
)

// RequiredBones must all be present for a humanoid mapping to be valid.
var RequiredBones = []HumanBone{
	Hips, Spine, Head,
	LeftUpperArm, LeftLowerArm, LeftHand,
	RightUpperArm, RightLowerArm, RightHand,
	LeftUpperLeg, LeftLowerLeg, LeftFoot,
	RightUpperLeg, RightLowerLeg, RightFoot,
}

// BoneMapping binds standard humanoid bones to rig nodes. It is rebuilt, never patched.
type BoneMapping struct {
	Bones   map[HumanBone]*scene.Node
	BuiltAt time.Time
}

func (m *BoneMapping) Bone(b HumanBone) *scene.Node {
	if m == nil {
		return nil
	}
	return m.Bones[b]
}

func (m *BoneMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Bones)
}

// SkeletonMapper builds a bone mapping from a rig root's current children.
type SkeletonMapper interface {
	Build(root *scene.Node) (*BoneMapping, error)
}

// HumanoidMapper maps bones by name, tolerating the usual exporter prefixes.
type HumanoidMapper struct {
	aliases  map[string]HumanBone
	required []HumanBone
}

func NewHumanoidMapper() *HumanoidMapper {
	aliases := map[string]HumanBone{
		"hips":       Hips,
		"pelvis":     Hips,
		"spine":      Spine,
		"spine1":     Chest,
		"chest":      Chest,
		"spine2":     UpperChest,
		"upperchest": UpperChest,
		"neck":       Neck,
		"head":       Head,
		"jaw":        Jaw,
		"lefteye":    LeftEye,
		"righteye":   RightEye,
	}
	for prefix, limbs := range map[string]sideBones{
		"left":  {LeftShoulder, LeftUpperArm, LeftLowerArm, LeftHand, LeftUpperLeg, LeftLowerLeg, LeftFoot, LeftToes},
		"right": {RightShoulder, RightUpperArm, RightLowerArm, RightHand, RightUpperLeg, RightLowerLeg, RightFoot, RightToes},
	} {
		for _, names := range []struct {
			suffixes []string
			bone     HumanBone
		}{
			{[]string{"shoulder"}, limbs.shoulder},
			{[]string{"arm", "upperarm"}, limbs.upperArm},
			{[]string{"forearm", "lowerarm"}, limbs.lowerArm},
			{[]string{"hand"}, limbs.hand},
			{[]string{"upleg", "upperleg", "thigh"}, limbs.upperLeg},
			{[]string{"leg", "lowerleg", "calf"}, limbs.lowerLeg},
			{[]string{"foot"}, limbs.foot},
			{[]string{"toebase", "toes"}, limbs.toes},
		} {
			for _, suffix := range names.suffixes {
				aliases[prefix+suffix] = names.bone
			}
		}
	}
	return &HumanoidMapper{
		aliases:  aliases,
		required: RequiredBones,
	}
}

type sideBones struct {
	shoulder, upperArm, lowerArm, hand HumanBone
	upperLeg, lowerLeg, foot, toes     HumanBone
}

// Build walks the subtree below root depth-first; the first node matching a bone wins.
func (hm *HumanoidMapper) Build(root *scene.Node) (*BoneMapping, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil rig root", core.ErrMappingFailed)
	}

	bones := make(map[HumanBone]*scene.Node)
	root.Walk(func(n *scene.Node) bool {
		if n.IsDestroyed() || n.IsPendingDestroy() {
			return false
		}
		if n == root {
			return true
		}
		bone, ok := hm.aliases[normalizeBoneName(n.Name())]
		if !ok {
			return true
		}
		if existing, dup := bones[bone]; dup {
			core.LogDebug("bone '%s' already mapped to '%s', ignoring '%s'", bone, existing.Name(), n.Name())
			return true
		}
		bones[bone] = n
		return true
	})

	missing := []string{}
	for _, b := range hm.required {
		if _, ok := bones[b]; !ok {
			missing = append(missing, string(b))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required bones: %s", core.ErrMappingFailed, strings.Join(missing, ", "))
	}

	return &BoneMapping{
		Bones:   bones,
		BuiltAt: time.Now(),
	}, nil
}

// normalizeBoneName turns "mixamorig:LeftUpLeg" or "Left_Up Leg" into "leftupleg".
func normalizeBoneName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, "mixamorig")
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', ' ', '.', '-':
			return -1
		}
		return r
	}, name)
}
