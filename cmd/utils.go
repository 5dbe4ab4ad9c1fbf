package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"awssched/internal/service/cfn"
	"awssched/internal/service/schedule"
)

// resolveStackName はコマンドライン引数または環境変数からスタック名を決定し、グローバル変数 stackName にセットする
func resolveStackName() {
	if stackName != "" {
		fmt.Println("🔍 -Sオプションで指定されたスタック名 '" + stackName + "' を使用します")
		return
	}
	envStack := os.Getenv("AWS_STACK_NAME")
	if envStack != "" {
		fmt.Println("🔍 環境変数 AWS_STACK_NAME の値 '" + envStack + "' を使用します")
		stackName = envStack
	}
	// どちらもなければstackNameは空のまま
}

// stackResourceType はリソース種別に対応するCloudFormationのリソースタイプを返す
func stackResourceType(kind schedule.Kind) string {
	switch kind {
	case schedule.KindDatabase:
		return cfn.ResourceTypeRdsInstance
	case schedule.KindNodeGroup:
		return cfn.ResourceTypeEksNodegroup
	default:
		return cfn.ResourceTypeEc2Instance
	}
}

// resolveIdFromStack はスタックから対象リソースのIDを取得する。
// NodeGroupの物理IDは "クラスター名/ノードグループ名" 形式のため分割して返す
func resolveIdFromStack(ctx context.Context, api cfn.CloudFormationAPI, stack string, kind schedule.Kind) (id, cluster string, err error) {
	physicalId, err := cfn.GetResourceIdFromStack(ctx, api, stack, stackResourceType(kind))
	if err != nil {
		return "", "", err
	}
	if kind != schedule.KindNodeGroup {
		return physicalId, "", nil
	}
	return splitNodegroupId(physicalId)
}

func splitNodegroupId(physicalId string) (nodegroup, cluster string, err error) {
	cluster, nodegroup, ok := strings.Cut(physicalId, "/")
	if !ok || cluster == "" || nodegroup == "" {
		return "", "", fmt.Errorf("ノードグループの物理IDの形式が不正です: %s", physicalId)
	}
	return nodegroup, cluster, nil
}
