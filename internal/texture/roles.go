package texture

import (
	"strconv"
	"strings"

	"github.com/samcharles93/glbopt/pkg/glb"
)

// Slot roles, in the order Classify visits them within one material.
const (
	RoleBaseColor         = "basecolor"
	RoleMetallicRoughness = "metallic_roughness"
	RoleNormal            = "normal"
	RoleEmissive          = "emissive"
	RoleOcclusion         = "occlusion"
)

// RoleLabels maps image indices to a diagnostic label.
type RoleLabels struct {
	roles map[int]string
	names []string
}

// Classify labels every image of doc by the material slot that samples it.
//
// Materials are visited in array order and slots in the fixed order base
// color, metallic-roughness, normal, emissive, occlusion. When an image is
// reachable from several slots the last visited slot wins. Dangling texture
// and image indices are ignored.
func Classify(doc *glb.Document) RoleLabels {
	labels := RoleLabels{roles: make(map[int]string)}
	if doc == nil {
		return labels
	}
	labels.names = make([]string, len(doc.Images))
	for i := range doc.Images {
		labels.names[i] = doc.Images[i].Name
	}

	for mi := range doc.Materials {
		m := &doc.Materials[mi]
		slots := []struct {
			role string
			info *glb.TextureInfo
		}{
			{RoleBaseColor, m.BaseColor()},
			{RoleMetallicRoughness, m.MetallicRoughness()},
			{RoleNormal, m.NormalTexture},
			{RoleEmissive, m.EmissiveTexture},
			{RoleOcclusion, m.OcclusionTexture},
		}
		for _, s := range slots {
			if s.info == nil || s.info.Index < 0 || s.info.Index >= len(doc.Textures) {
				continue
			}
			for _, img := range doc.Textures[s.info.Index].Sources() {
				if img < 0 || img >= len(doc.Images) {
					continue
				}
				labels.roles[img] = s.role
			}
		}
	}
	return labels
}

// Role returns the material-slot role of image i, if any slot samples it.
func (l RoleLabels) Role(i int) (string, bool) {
	r, ok := l.roles[i]
	return r, ok
}

// Label returns the role of image i, falling back to the image name and then
// to texture_<i>.
func (l RoleLabels) Label(i int) string {
	if r, ok := l.roles[i]; ok {
		return r
	}
	if i >= 0 && i < len(l.names) && strings.TrimSpace(l.names[i]) != "" {
		return l.names[i]
	}
	return "texture_" + strconv.Itoa(i)
}

// FileStem makes a label safe to use as part of a file name.
func FileStem(label string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), ".")
	if s == "" {
		return "texture"
	}
	return s
}
