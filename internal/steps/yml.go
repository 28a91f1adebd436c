package steps

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var errNoPackageInfo = errors.New("package.name or package.version missing")

// packageInfo — секция package из release/<product>/<repo>.yml.
type packageInfo struct {
	Name    string
	Version string
}

// parsePackageInfo извлекает package.name и package.version.
func parsePackageInfo(data []byte) (packageInfo, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return packageInfo{}, err
	}

	nameNode, versionNode := packageNodes(&doc)
	if nameNode == nil || versionNode == nil || nameNode.Value == "" || versionNode.Value == "" {
		return packageInfo{}, errNoPackageInfo
	}

	return packageInfo{Name: nameNode.Value, Version: versionNode.Value}, nil
}

// rewritePackageInfo меняет только package.name и package.version,
// остальной документ (порядок ключей, комментарии) сохраняется.
func rewritePackageInfo(data []byte, info packageInfo) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	nameNode, versionNode := packageNodes(&doc)
	if nameNode == nil || versionNode == nil {
		return nil, errNoPackageInfo
	}
	setScalar(nameNode, info.Name)
	setScalar(versionNode, info.Version)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}

	return buf.Bytes(), nil
}

// packageNodes находит scalar-узлы package.name и package.version.
func packageNodes(doc *yaml.Node) (name, version *yaml.Node) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	pkg := mappingValue(doc.Content[0], "package")
	if pkg == nil || pkg.Kind != yaml.MappingNode {
		return nil, nil
	}

	name = mappingValue(pkg, "name")
	version = mappingValue(pkg, "version")
	if name != nil && name.Kind != yaml.ScalarNode {
		name = nil
	}
	if version != nil && version.Kind != yaml.ScalarNode {
		version = nil
	}
	return name, version
}

// mappingValue возвращает значение ключа key в mapping-узле.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setScalar записывает строковое значение.
// Тег сбрасывается, чтобы "1.10" не превратилось в число.
func setScalar(n *yaml.Node, value string) {
	n.Value = value
	n.Tag = "!!str"
	if n.Style == yaml.TaggedStyle {
		n.Style = 0
	}
}
